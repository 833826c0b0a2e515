package service

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/credit-ledger/internal/storage"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// TransactionService handles transaction history reads.
type TransactionService struct {
	storage         *storage.Storage
	lapser          *lazyLapser
	defaultPageSize int
	maxPageSize     int
}

// NewTransactionService creates a new TransactionService. Non-positive page
// sizes fall back to 10 and 100.
func NewTransactionService(store *storage.Storage, lapser *lazyLapser, defaultSize, maxSize int) *TransactionService {
	if defaultSize < 1 {
		defaultSize = defaultPageSize
	}
	if maxSize < defaultSize {
		maxSize = max(defaultSize, maxPageSize)
	}
	return &TransactionService{
		storage:         store,
		lapser:          lapser,
		defaultPageSize: defaultSize,
		maxPageSize:     maxSize,
	}
}

// ListTransactions returns one page of the account's history, newest first.
// Pages are numbered from 1; a page past the end is empty.
func (s *TransactionService) ListTransactions(ctx context.Context, accountID uuid.UUID, page, pageSize int) (*TransactionPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = s.defaultPageSize
	}
	pageSize = min(pageSize, s.maxPageSize)

	if s.lapser != nil && s.lapser.enabled {
		if _, _, err := s.lapser.snapshot(ctx, accountID); err != nil {
			return nil, mapError(accountID, err)
		}
	}

	rows, err := s.storage.Ledger.ListByAccount(ctx, accountID, page, pageSize)
	if err != nil {
		return nil, mapError(accountID, err)
	}

	result := &TransactionPage{
		Transactions: make([]Transaction, len(rows.Entries)),
		Page:         page,
		Pages:        (rows.Total + pageSize - 1) / pageSize,
		Total:        rows.Total,
	}
	for i, entry := range rows.Entries {
		result.Transactions[i] = transactionFromStorage(entry.Transaction, entry.Lot)
	}
	return result, nil
}
