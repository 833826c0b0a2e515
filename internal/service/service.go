package service

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jonboulle/clockwork"

	"github.com/carson-networks/credit-ledger/internal/credit"
	"github.com/carson-networks/credit-ledger/internal/operator/actions"
	"github.com/carson-networks/credit-ledger/internal/storage"
	"github.com/carson-networks/credit-ledger/internal/storage/ledger"
)

// Processor runs a ledger action to commit. *operator.OperatorDelegator satisfies it.
type Processor interface {
	Process(ctx context.Context, action actions.IAction) error
}

type Options struct {
	LazyLapse       bool
	DefaultPageSize int
	MaxPageSize     int
}

// Service holds all business logic services.
type Service struct {
	Balance     *BalanceService
	Transaction *TransactionService
}

// NewService creates a new Service with the given storage and operator.
func NewService(store *storage.Storage, processor Processor, clock clockwork.Clock, opts Options) *Service {
	lapser := &lazyLapser{
		storage:   store,
		processor: processor,
		clock:     clock,
		enabled:   opts.LazyLapse,
	}
	return &Service{
		Balance:     NewBalanceService(store, processor, clock, lapser),
		Transaction: NewTransactionService(store, lapser, opts.DefaultPageSize, opts.MaxPageSize),
	}
}

// lazyLapser forfeits expired lots before a read reports them, when enabled.
type lazyLapser struct {
	storage   *storage.Storage
	processor Processor
	clock     clockwork.Clock
	enabled   bool
}

// snapshot reads the account as of now. When enabled and the account still
// holds expired credit, that credit is lapsed through the processor first.
func (l *lazyLapser) snapshot(ctx context.Context, accountID uuid.UUID) (*ledger.Snapshot, time.Time, error) {
	now := l.clock.Now()
	snap, err := l.storage.Ledger.Snapshot(ctx, accountID)
	if err != nil {
		return nil, now, err
	}
	if !l.enabled || len(credit.LapsableLots(snap.Lots, now)) == 0 {
		return snap, now, nil
	}

	lapse := &actions.Lapse{Account: accountID, AsOf: now, Now: now}
	if err := l.processor.Process(ctx, lapse); err != nil {
		return nil, now, err
	}
	snap, err = l.storage.Ledger.Snapshot(ctx, accountID)
	return snap, now, err
}

// mapError turns store signals into the domain error taxonomy. Domain errors
// pass through untouched.
func mapError(accountID uuid.UUID, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ledger.ErrConflict):
		return &credit.ConflictError{AccountID: accountID, Err: err}
	case errors.Is(err, ledger.ErrUnavailable):
		return &credit.StoreUnavailableError{Err: err}
	default:
		return err
	}
}
