package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/credit-ledger/internal/storage/ledger"
)

var ErrWriterClosed = errors.New("storage: writer already committed or rolled back")

// Writer stages the changes of one logical operation on one account and commits
// them as a single Batch. It works on copies of the snapshot's lots, so a writer
// that is rolled back leaves no trace.
type Writer struct {
	store    ledger.ILedgerStore
	snapshot *ledger.Snapshot

	lots          []*ledger.Lot
	lotsByID      map[uuid.UUID]*ledger.Lot
	updated       map[uuid.UUID]struct{}
	batch         *ledger.Batch
	lastSequence  int64
	lastCreatedAt time.Time
	closed        bool
}

func NewWriter(store ledger.ILedgerStore, snapshot *ledger.Snapshot) *Writer {
	w := &Writer{
		store:         store,
		snapshot:      snapshot,
		lotsByID:      make(map[uuid.UUID]*ledger.Lot, len(snapshot.Lots)),
		updated:       make(map[uuid.UUID]struct{}),
		lastSequence:  snapshot.LastSequence,
		lastCreatedAt: snapshot.LastCreatedAt,
		batch: &ledger.Batch{
			AccountID:       snapshot.AccountID,
			ExpectedVersion: snapshot.Version,
		},
	}
	for _, lot := range snapshot.Lots {
		c := lot.Clone()
		w.lots = append(w.lots, c)
		w.lotsByID[c.LotID] = c
	}
	return w
}

func (w *Writer) AccountID() uuid.UUID {
	return w.snapshot.AccountID
}

// Lots returns the writer's working view of the account's open lots, including
// lots opened by this writer. Callers must not modify them.
func (w *Writer) Lots() []*ledger.Lot {
	return w.lots
}

// FindIdempotent returns the transaction already recorded under key, or nil.
func (w *Writer) FindIdempotent(ctx context.Context, key string) (*ledger.Transaction, error) {
	if key == "" {
		return nil, nil
	}
	for _, tx := range w.batch.Transactions {
		if tx.IdempotencyKey == key {
			return tx, nil
		}
	}
	tx, err := w.store.FindByIdempotencyKey(ctx, w.AccountID(), key)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, nil
	}
	return tx, err
}

// Append stages tx. It assigns the id, the next sequence number and a creation
// time that never goes backwards for the account. Purchases and refunds also
// open a lot holding the full amount.
func (w *Writer) Append(tx *ledger.Transaction, now time.Time) (*ledger.Transaction, error) {
	if w.closed {
		return nil, ErrWriterClosed
	}
	if tx.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("storage: new transaction id: %w", err)
		}
		tx.ID = id
	}

	createdAt := Timestamp(now)
	if createdAt.Before(w.lastCreatedAt) {
		createdAt = w.lastCreatedAt
	}
	w.lastSequence++
	w.lastCreatedAt = createdAt

	tx.AccountID = w.AccountID()
	tx.Sequence = w.lastSequence
	tx.CreatedAt = createdAt
	if tx.ExpirationDate != nil {
		exp := Timestamp(*tx.ExpirationDate)
		tx.ExpirationDate = &exp
	}
	w.batch.Transactions = append(w.batch.Transactions, tx)

	if tx.Type.CreatesLot() {
		lot := &ledger.Lot{
			LotID:          tx.ID,
			AccountID:      tx.AccountID,
			OriginalAmount: tx.Amount,
			Remaining:      tx.Amount,
			ExpirationDate: tx.ExpirationDate,
			State:          ledger.LotStateActive,
			CreatedAt:      createdAt,
		}
		w.batch.NewLots = append(w.batch.NewLots, lot)
		w.lots = append(w.lots, lot)
		w.lotsByID[lot.LotID] = lot
	}
	return tx, nil
}

// Spend takes amount from an open lot.
func (w *Writer) Spend(lotID uuid.UUID, amount int64) error {
	lot, err := w.openLot(lotID)
	if err != nil {
		return err
	}
	if amount <= 0 || amount > lot.Remaining {
		return fmt.Errorf("storage: cannot spend %d from lot %s holding %d", amount, lotID, lot.Remaining)
	}
	lot.Remaining -= amount
	if lot.Remaining == 0 {
		lot.State = ledger.LotStateExhausted
	}
	w.updated[lotID] = struct{}{}
	return nil
}

// Lapse zeroes a lot's remainder and returns how much was forfeited.
func (w *Writer) Lapse(lotID uuid.UUID) (int64, error) {
	lot, err := w.openLot(lotID)
	if err != nil {
		return 0, err
	}
	forfeited := lot.Remaining
	lot.Remaining = 0
	lot.State = ledger.LotStateLapsed
	w.updated[lotID] = struct{}{}
	return forfeited, nil
}

func (w *Writer) openLot(lotID uuid.UUID) (*ledger.Lot, error) {
	if w.closed {
		return nil, ErrWriterClosed
	}
	lot, ok := w.lotsByID[lotID]
	if !ok {
		return nil, fmt.Errorf("storage: lot %s: %w", lotID, ledger.ErrNotFound)
	}
	return lot, nil
}

// Commit writes the staged batch. ledger.ErrConflict means the account moved on
// since the snapshot; the whole operation must be redone on a fresh writer.
func (w *Writer) Commit(ctx context.Context) ([]*ledger.Transaction, error) {
	if w.closed {
		return nil, ErrWriterClosed
	}
	w.closed = true

	for lotID := range w.updated {
		lot := w.lotsByID[lotID]
		if w.isNew(lotID) {
			continue
		}
		w.batch.LotUpdates = append(w.batch.LotUpdates, ledger.LotUpdate{
			LotID:     lotID,
			Remaining: lot.Remaining,
			State:     lot.State,
		})
	}
	if w.batch.Empty() {
		return nil, nil
	}
	return w.store.Append(ctx, w.batch)
}

func (w *Writer) isNew(lotID uuid.UUID) bool {
	for _, lot := range w.batch.NewLots {
		if lot.LotID == lotID {
			return true
		}
	}
	return false
}

// Rollback discards everything staged.
func (w *Writer) Rollback() error {
	if w.closed {
		return ErrWriterClosed
	}
	w.closed = true
	return nil
}

// Timestamp normalises a time to what the durable store keeps: UTC, microseconds.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
