package actions

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/credit-ledger/internal/credit"
	"github.com/carson-networks/credit-ledger/internal/storage"
	"github.com/carson-networks/credit-ledger/internal/storage/ledger"
)

// IAction is one logical ledger operation on a single account. Perform may be
// called more than once, each time on a fresh writer, when a commit conflicts.
type IAction interface {
	Name() string
	AccountID() uuid.UUID
	Perform(ctx context.Context, writer *storage.Writer) error
}

// ExpiredDescription is recorded on the adjustment that forfeits a lapsed lot.
const ExpiredDescription = "expired"

// lapseExpired forfeits every open lot whose expiration is at or before asOf,
// recording an adjustment for each, and returns how many lots lapsed.
func lapseExpired(writer *storage.Writer, asOf, now time.Time) (int, error) {
	lapsable := credit.LapsableLots(writer.Lots(), asOf)
	for _, lot := range lapsable {
		forfeited, err := writer.Lapse(lot.LotID)
		if err != nil {
			return 0, err
		}
		_, err = writer.Append(&ledger.Transaction{
			Type:        ledger.TransactionTypeAdjustment,
			Amount:      -forfeited,
			Description: ExpiredDescription,
		}, now)
		if err != nil {
			return 0, err
		}
	}
	return len(lapsable), nil
}
