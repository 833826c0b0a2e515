package actions

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/credit-ledger/internal/credit"
	"github.com/carson-networks/credit-ledger/internal/storage"
	"github.com/carson-networks/credit-ledger/internal/storage/ledger"
)

// Debit spends credits from the account's active lots, soonest-expiring first.
// When the lots cannot cover the amount nothing is staged and the writer is
// rolled back by the operator.
type Debit struct {
	Account        uuid.UUID
	Amount         int64
	Description    string
	IdempotencyKey string
	Now            time.Time

	// Set by Perform.
	Result   *ledger.Transaction
	Draws    []credit.Draw
	Replayed bool
	Lapsed   int
}

func (d *Debit) Name() string { return "debit" }

func (d *Debit) AccountID() uuid.UUID { return d.Account }

func (d *Debit) Perform(ctx context.Context, writer *storage.Writer) error {
	d.Result, d.Draws, d.Replayed, d.Lapsed = nil, nil, false, 0

	existing, err := writer.FindIdempotent(ctx, d.IdempotencyKey)
	if err != nil {
		return err
	}
	if existing != nil {
		d.Result, d.Replayed = existing, true
		return nil
	}

	d.Lapsed, err = lapseExpired(writer, d.Now, d.Now)
	if err != nil {
		return err
	}

	draws, err := credit.Allocate(credit.ActiveLots(writer.Lots(), d.Now), d.Amount)
	if err != nil {
		return err
	}
	for _, draw := range draws {
		if err := writer.Spend(draw.LotID, draw.Amount); err != nil {
			return err
		}
	}

	tx, err := writer.Append(&ledger.Transaction{
		Type:           ledger.TransactionTypeUsage,
		Amount:         -d.Amount,
		Description:    d.Description,
		IdempotencyKey: d.IdempotencyKey,
	}, d.Now)
	if err != nil {
		return err
	}

	d.Result, d.Draws = tx, draws
	return nil
}
