package actions

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/credit-ledger/internal/storage"
)

// Lapse forfeits the account's lots that expired at or before AsOf. Running it
// again at the same AsOf finds nothing to do and commits nothing.
type Lapse struct {
	Account uuid.UUID
	AsOf    time.Time
	Now     time.Time

	// Set by Perform.
	Lapsed int
}

func (l *Lapse) Name() string { return "lapse" }

func (l *Lapse) AccountID() uuid.UUID { return l.Account }

func (l *Lapse) Perform(_ context.Context, writer *storage.Writer) error {
	lapsed, err := lapseExpired(writer, l.AsOf, l.Now)
	if err != nil {
		return err
	}
	l.Lapsed = lapsed
	return nil
}
