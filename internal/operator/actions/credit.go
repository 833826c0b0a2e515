package actions

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/credit-ledger/internal/credit"
	"github.com/carson-networks/credit-ledger/internal/storage"
	"github.com/carson-networks/credit-ledger/internal/storage/ledger"
)

// Credit opens a new lot from a purchase or refund.
type Credit struct {
	Account        uuid.UUID
	Amount         int64
	Type           ledger.TransactionType
	ExpirationDate *time.Time
	Description    string
	IdempotencyKey string
	Now            time.Time

	// Set by Perform.
	Result   *ledger.Transaction
	Replayed bool
	Lapsed   int
}

func (c *Credit) Name() string { return "credit" }

func (c *Credit) AccountID() uuid.UUID { return c.Account }

func (c *Credit) Perform(ctx context.Context, writer *storage.Writer) error {
	c.Result, c.Replayed, c.Lapsed = nil, false, 0

	existing, err := writer.FindIdempotent(ctx, c.IdempotencyKey)
	if err != nil {
		return err
	}
	if existing != nil {
		c.Result, c.Replayed = existing, true
		return nil
	}

	c.Lapsed, err = lapseExpired(writer, c.Now, c.Now)
	if err != nil {
		return err
	}

	var expiration *time.Time
	if c.ExpirationDate != nil {
		exp := *c.ExpirationDate
		expiration = &exp
	}
	tx, err := writer.Append(&ledger.Transaction{
		Type:           c.Type,
		Amount:         c.Amount,
		Description:    c.Description,
		ExpirationDate: expiration,
		IdempotencyKey: c.IdempotencyKey,
	}, c.Now)
	if err != nil {
		return err
	}
	if tx.ExpirationDate != nil && !tx.ExpirationDate.After(tx.CreatedAt) {
		return &credit.InvalidExpirationError{ExpirationDate: *tx.ExpirationDate, CreatedAt: tx.CreatedAt}
	}

	c.Result = tx
	return nil
}
