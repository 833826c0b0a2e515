package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
)

var (
	// ErrConflict means another writer advanced the account since it was read.
	ErrConflict = errors.New("ledger store: concurrent modification")
	// ErrUnavailable wraps failures of the underlying durable store.
	ErrUnavailable = errors.New("ledger store: unavailable")
	ErrNotFound    = errors.New("ledger store: not found")
)

// ILedgerStore is the append-only system of record for credit transactions and lots.
// Implementations must apply a Batch atomically and reject it with ErrConflict when
// the account version no longer matches.
type ILedgerStore interface {
	// Snapshot returns the account's version and open lots from a single consistent read.
	// Unknown accounts yield an empty snapshot at version 0.
	Snapshot(ctx context.Context, accountID uuid.UUID) (*Snapshot, error)

	// Append commits the batch and returns the committed transactions.
	Append(ctx context.Context, batch *Batch) ([]*Transaction, error)

	// ListByAccount returns a page of transactions ordered by createdAt then sequence, descending.
	ListByAccount(ctx context.Context, accountID uuid.UUID, page, pageSize int) (*Page, error)

	// GetLotsByAccount returns every lot the account ever opened, in any state.
	GetLotsByAccount(ctx context.Context, accountID uuid.UUID) ([]*Lot, error)

	// FindByIdempotencyKey returns ErrNotFound when no transaction carries the key.
	FindByIdempotencyKey(ctx context.Context, accountID uuid.UUID, key string) (*Transaction, error)

	// AccountsWithLapsableLots lists accounts holding a lot with remaining > 0 that expired at or before asOf.
	AccountsWithLapsableLots(ctx context.Context, asOf time.Time, limit int) ([]uuid.UUID, error)

	Close() error
}
