// Package credit holds the pure lot arithmetic of the ledger: which lots are usable
// at a point in time, in what order they are consumed, and how a debit is split
// across them. Nothing here touches storage.
package credit

import (
	"bytes"
	"sort"
	"time"

	"github.com/carson-networks/credit-ledger/internal/storage/ledger"
)

// ActiveLots returns the lots usable at asOf, in consumption priority order.
// A lot is usable when it has a positive remainder and has not expired.
func ActiveLots(lots []*ledger.Lot, asOf time.Time) []*ledger.Lot {
	active := make([]*ledger.Lot, 0, len(lots))
	for _, lot := range lots {
		if lot.Remaining > 0 && !lot.ExpiredAt(asOf) {
			active = append(active, lot)
		}
	}
	SortByConsumptionPriority(active)
	return active
}

// LapsableLots returns the lots that still hold credit past their expiration.
func LapsableLots(lots []*ledger.Lot, asOf time.Time) []*ledger.Lot {
	var lapsable []*ledger.Lot
	for _, lot := range lots {
		if lot.Remaining > 0 && lot.ExpiredAt(asOf) {
			lapsable = append(lapsable, lot)
		}
	}
	SortByConsumptionPriority(lapsable)
	return lapsable
}

// Balance sums the remainder of the lots usable at asOf.
func Balance(lots []*ledger.Lot, asOf time.Time) int64 {
	var total int64
	for _, lot := range ActiveLots(lots, asOf) {
		total += lot.Remaining
	}
	return total
}

// SortByConsumptionPriority orders lots soonest-expiring first with never-expiring
// lots last, then by creation time, then by lot id.
func SortByConsumptionPriority(lots []*ledger.Lot) {
	sort.SliceStable(lots, func(i, j int) bool {
		return consumedBefore(lots[i], lots[j])
	})
}

func consumedBefore(a, b *ledger.Lot) bool {
	switch {
	case a.ExpirationDate == nil && b.ExpirationDate != nil:
		return false
	case a.ExpirationDate != nil && b.ExpirationDate == nil:
		return true
	case a.ExpirationDate != nil && !a.ExpirationDate.Equal(*b.ExpirationDate):
		return a.ExpirationDate.Before(*b.ExpirationDate)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return bytes.Compare(a.LotID.Bytes(), b.LotID.Bytes()) < 0
}
