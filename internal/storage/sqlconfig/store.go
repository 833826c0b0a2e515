// Package sqlconfig is the PostgreSQL ILedgerStore. Queries are built with bob's
// psql dialect; every write of a Batch runs in one database transaction guarded
// by the account's version row.
package sqlconfig

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/lib/pq"
	"github.com/stephenafamo/bob"

	"github.com/carson-networks/credit-ledger/internal/storage/ledger"
)

// Postgres error codes that mean another writer won.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

type Store struct {
	db   *sql.DB
	exec bob.DB

	accounts     AccountsTable
	transactions TransactionsTable
	lots         LotsTable
}

var _ ledger.ILedgerStore = (*Store)(nil)

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:   db,
		exec: bob.NewDB(db),
	}
}

var readOnly = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}

// read runs fn inside a read-only repeatable-read transaction so that every
// query it makes sees the same snapshot.
func (s *Store) read(ctx context.Context, fn func(exec bob.Executor) error) error {
	tx, err := s.exec.BeginTx(ctx, readOnly)
	if err != nil {
		return classify(err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return classify(err)
	}
	return classify(tx.Commit())
}

func (s *Store) Snapshot(ctx context.Context, accountID uuid.UUID) (*ledger.Snapshot, error) {
	snap := &ledger.Snapshot{AccountID: accountID}
	err := s.read(ctx, func(exec bob.Executor) error {
		row, err := s.accounts.Find(ctx, exec, accountID)
		if err != nil {
			return err
		}
		snap.Version = row.Version
		snap.LastSequence = row.LastSequence
		snap.LastCreatedAt = row.LastCreatedAt

		snap.Lots, err = s.lots.ListOpen(ctx, exec, accountID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *Store) Append(ctx context.Context, batch *ledger.Batch) ([]*ledger.Transaction, error) {
	tx, err := s.exec.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, classify(err)
	}

	if err := s.appendTx(ctx, tx, batch); err != nil {
		_ = tx.Rollback()
		return nil, classify(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, classify(err)
	}

	committed := make([]*ledger.Transaction, len(batch.Transactions))
	for i, t := range batch.Transactions {
		c := *t
		committed[i] = &c
	}
	return committed, nil
}

func (s *Store) appendTx(ctx context.Context, exec bob.Executor, batch *ledger.Batch) error {
	current, err := s.accounts.Find(ctx, exec, batch.AccountID)
	if err != nil {
		return err
	}
	if current.Version != batch.ExpectedVersion {
		return ledger.ErrConflict
	}

	lastSequence, lastCreatedAt := batchHighWater(batch)
	lastSequence = max(lastSequence, current.LastSequence)
	if lastCreatedAt.Before(current.LastCreatedAt) {
		lastCreatedAt = current.LastCreatedAt
	}

	advanced, err := s.accounts.Advance(ctx, exec, batch.AccountID, batch.ExpectedVersion, lastSequence, lastCreatedAt)
	if err != nil {
		return err
	}
	if !advanced {
		return ledger.ErrConflict
	}

	if err := s.transactions.Insert(ctx, exec, batch.Transactions); err != nil {
		return err
	}
	if err := s.lots.Insert(ctx, exec, batch.NewLots); err != nil {
		return err
	}
	for _, update := range batch.LotUpdates {
		if err := s.lots.Update(ctx, exec, batch.AccountID, update); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ListByAccount(ctx context.Context, accountID uuid.UUID, page, pageSize int) (*ledger.Page, error) {
	result := &ledger.Page{}
	err := s.read(ctx, func(exec bob.Executor) error {
		total, err := s.transactions.Count(ctx, exec, accountID)
		if err != nil {
			return err
		}
		result.Total = int(total)
		if page < 1 || pageSize < 1 || total == 0 {
			return nil
		}
		result.Entries, err = s.transactions.List(ctx, exec, accountID, pageSize, (page-1)*pageSize)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) GetLotsByAccount(ctx context.Context, accountID uuid.UUID) ([]*ledger.Lot, error) {
	lots, err := s.lots.ListAll(ctx, s.exec, accountID)
	if err != nil {
		return nil, classify(err)
	}
	return lots, nil
}

func (s *Store) FindByIdempotencyKey(ctx context.Context, accountID uuid.UUID, key string) (*ledger.Transaction, error) {
	tx, err := s.transactions.FindByIdempotencyKey(ctx, s.exec, accountID, key)
	if err != nil {
		return nil, classify(err)
	}
	return tx, nil
}

func (s *Store) AccountsWithLapsableLots(ctx context.Context, asOf time.Time, limit int) ([]uuid.UUID, error) {
	ids, err := s.lots.AccountsWithLapsable(ctx, s.exec, asOf, limit)
	if err != nil {
		return nil, classify(err)
	}
	return ids, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// classify maps driver errors onto the ledger's signals. Errors that already
// carry one are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ledger.ErrConflict) || errors.Is(err, ledger.ErrNotFound) || errors.Is(err, ledger.ErrUnavailable) {
		return err
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeUniqueViolation, codeSerializationFailure, codeDeadlockDetected:
			return fmt.Errorf("%w: %s", ledger.ErrConflict, pqErr.Message)
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", ledger.ErrUnavailable, err)
}
