// Package memory is an in-process ILedgerStore. Each account has its own lock,
// so writers on different accounts never wait on each other.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/credit-ledger/internal/storage/ledger"
)

type accountState struct {
	mu            sync.RWMutex
	version       int64
	lastSequence  int64
	lastCreatedAt time.Time
	transactions  []*ledger.Transaction
	lots          map[uuid.UUID]*ledger.Lot
	lotOrder      []uuid.UUID
	idempotency   map[string]*ledger.Transaction
}

type Store struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]*accountState
}

var _ ledger.ILedgerStore = (*Store)(nil)

func New() *Store {
	return &Store{accounts: make(map[uuid.UUID]*accountState)}
}

func (s *Store) account(accountID uuid.UUID, create bool) *accountState {
	s.mu.RLock()
	acc, ok := s.accounts[accountID]
	s.mu.RUnlock()
	if ok || !create {
		return acc
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if acc, ok = s.accounts[accountID]; ok {
		return acc
	}
	acc = &accountState{
		lots:        make(map[uuid.UUID]*ledger.Lot),
		idempotency: make(map[string]*ledger.Transaction),
	}
	s.accounts[accountID] = acc
	return acc
}

func (s *Store) Snapshot(_ context.Context, accountID uuid.UUID) (*ledger.Snapshot, error) {
	snap := &ledger.Snapshot{AccountID: accountID}
	acc := s.account(accountID, false)
	if acc == nil {
		return snap, nil
	}

	acc.mu.RLock()
	defer acc.mu.RUnlock()
	snap.Version = acc.version
	snap.LastSequence = acc.lastSequence
	snap.LastCreatedAt = acc.lastCreatedAt
	for _, lotID := range acc.lotOrder {
		if lot := acc.lots[lotID]; lot.Remaining > 0 {
			snap.Lots = append(snap.Lots, lot.Clone())
		}
	}
	return snap, nil
}

func (s *Store) Append(_ context.Context, batch *ledger.Batch) ([]*ledger.Transaction, error) {
	acc := s.account(batch.AccountID, true)

	acc.mu.Lock()
	defer acc.mu.Unlock()

	if acc.version != batch.ExpectedVersion {
		return nil, ledger.ErrConflict
	}
	if err := acc.validate(batch); err != nil {
		return nil, err
	}

	committed := make([]*ledger.Transaction, len(batch.Transactions))
	for i, tx := range batch.Transactions {
		stored := cloneTransaction(tx)
		acc.transactions = append(acc.transactions, stored)
		if stored.IdempotencyKey != "" {
			acc.idempotency[stored.IdempotencyKey] = stored
		}
		acc.lastSequence = max(acc.lastSequence, stored.Sequence)
		if stored.CreatedAt.After(acc.lastCreatedAt) {
			acc.lastCreatedAt = stored.CreatedAt
		}
		committed[i] = cloneTransaction(stored)
	}
	for _, lot := range batch.NewLots {
		acc.lots[lot.LotID] = lot.Clone()
		acc.lotOrder = append(acc.lotOrder, lot.LotID)
	}
	for _, update := range batch.LotUpdates {
		lot := acc.lots[update.LotID]
		lot.Remaining = update.Remaining
		lot.State = update.State
	}
	acc.version++

	return committed, nil
}

// validate checks the batch against the account without changing anything.
func (acc *accountState) validate(batch *ledger.Batch) error {
	seen := make(map[string]struct{})
	for _, tx := range batch.Transactions {
		if tx.Sequence <= acc.lastSequence {
			return ledger.ErrConflict
		}
		if tx.IdempotencyKey == "" {
			continue
		}
		if _, dup := acc.idempotency[tx.IdempotencyKey]; dup {
			return ledger.ErrConflict
		}
		if _, dup := seen[tx.IdempotencyKey]; dup {
			return ledger.ErrConflict
		}
		seen[tx.IdempotencyKey] = struct{}{}
	}
	for _, lot := range batch.NewLots {
		if _, exists := acc.lots[lot.LotID]; exists {
			return ledger.ErrConflict
		}
	}
	for _, update := range batch.LotUpdates {
		lot, ok := acc.lots[update.LotID]
		if !ok {
			return fmt.Errorf("memory store: lot %s: %w", update.LotID, ledger.ErrNotFound)
		}
		if update.Remaining < 0 || update.Remaining > lot.Remaining {
			return fmt.Errorf("memory store: lot %s remaining %d -> %d is not a decrease",
				update.LotID, lot.Remaining, update.Remaining)
		}
	}
	return nil
}

func (s *Store) ListByAccount(_ context.Context, accountID uuid.UUID, page, pageSize int) (*ledger.Page, error) {
	result := &ledger.Page{}
	acc := s.account(accountID, false)
	if acc == nil {
		return result, nil
	}

	acc.mu.RLock()
	defer acc.mu.RUnlock()

	ordered := make([]*ledger.Transaction, len(acc.transactions))
	copy(ordered, acc.transactions)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.After(ordered[j].CreatedAt)
		}
		return ordered[i].Sequence > ordered[j].Sequence
	})

	result.Total = len(ordered)
	if page < 1 || pageSize < 1 {
		return result, nil
	}
	start := min((page-1)*pageSize, len(ordered))
	end := min(start+pageSize, len(ordered))
	for _, tx := range ordered[start:end] {
		entry := &ledger.Entry{Transaction: cloneTransaction(tx)}
		if lot, ok := acc.lots[tx.ID]; ok {
			entry.Lot = lot.Clone()
		}
		result.Entries = append(result.Entries, entry)
	}
	return result, nil
}

func (s *Store) GetLotsByAccount(_ context.Context, accountID uuid.UUID) ([]*ledger.Lot, error) {
	acc := s.account(accountID, false)
	if acc == nil {
		return nil, nil
	}

	acc.mu.RLock()
	defer acc.mu.RUnlock()
	lots := make([]*ledger.Lot, 0, len(acc.lotOrder))
	for _, lotID := range acc.lotOrder {
		lots = append(lots, acc.lots[lotID].Clone())
	}
	return lots, nil
}

func (s *Store) FindByIdempotencyKey(_ context.Context, accountID uuid.UUID, key string) (*ledger.Transaction, error) {
	acc := s.account(accountID, false)
	if acc == nil {
		return nil, ledger.ErrNotFound
	}

	acc.mu.RLock()
	defer acc.mu.RUnlock()
	if tx, ok := acc.idempotency[key]; ok {
		return cloneTransaction(tx), nil
	}
	return nil, ledger.ErrNotFound
}

func (s *Store) AccountsWithLapsableLots(_ context.Context, asOf time.Time, limit int) ([]uuid.UUID, error) {
	s.mu.RLock()
	ids := make([]uuid.UUID, 0, len(s.accounts))
	for accountID := range s.accounts {
		ids = append(ids, accountID)
	}
	s.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	var result []uuid.UUID
	for _, accountID := range ids {
		if limit > 0 && len(result) >= limit {
			break
		}
		if s.hasLapsableLot(accountID, asOf) {
			result = append(result, accountID)
		}
	}
	return result, nil
}

func (s *Store) hasLapsableLot(accountID uuid.UUID, asOf time.Time) bool {
	acc := s.account(accountID, false)
	acc.mu.RLock()
	defer acc.mu.RUnlock()
	for _, lot := range acc.lots {
		if lot.Remaining > 0 && lot.ExpiredAt(asOf) {
			return true
		}
	}
	return false
}

func (s *Store) Close() error {
	return nil
}

func cloneTransaction(tx *ledger.Transaction) *ledger.Transaction {
	c := *tx
	if tx.ExpirationDate != nil {
		exp := *tx.ExpirationDate
		c.ExpirationDate = &exp
	}
	return &c
}
