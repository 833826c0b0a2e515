package credit

import (
	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/credit-ledger/internal/storage/ledger"
)

// Draw is the part of a debit taken from one lot.
type Draw struct {
	LotID  uuid.UUID
	Amount int64
}

// Allocate splits amount across lots, which must already be in consumption
// priority order (see ActiveLots). Each lot gives min(remaining, amount left).
// The lots are not modified; the caller applies the draws. If the lots cannot
// cover the amount no draw is returned.
func Allocate(lots []*ledger.Lot, amount int64) ([]Draw, error) {
	if amount <= 0 {
		return nil, &InvalidAmountError{Amount: amount}
	}

	left := amount
	var draws []Draw
	for _, lot := range lots {
		if left == 0 {
			break
		}
		if lot.Remaining <= 0 {
			continue
		}
		take := min(lot.Remaining, left)
		draws = append(draws, Draw{LotID: lot.LotID, Amount: take})
		left -= take
	}

	if left > 0 {
		return nil, &InsufficientCreditError{Requested: amount, Available: amount - left}
	}
	return draws, nil
}
