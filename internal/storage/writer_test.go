package storage

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carson-networks/credit-ledger/internal/storage/ledger"
	"github.com/carson-networks/credit-ledger/internal/storage/memory"
)

var now = time.Date(2025, 7, 1, 12, 0, 0, 123456789, time.UTC)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	return New(memory.New())
}

func TestWriter_AppendAssignsSequenceAndTimestamp(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	accountID := uuid.Must(uuid.NewV4())

	w, err := s.Write(ctx, accountID)
	require.NoError(t, err)

	tx, err := w.Append(&ledger.Transaction{Type: ledger.TransactionTypePurchase, Amount: 10}, now)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, tx.ID)
	assert.Equal(t, accountID, tx.AccountID)
	assert.Equal(t, int64(1), tx.Sequence)
	assert.Equal(t, now.Truncate(time.Microsecond), tx.CreatedAt)
	require.Len(t, w.Lots(), 1)
	assert.Equal(t, tx.ID, w.Lots()[0].LotID)

	committed, err := w.Commit(ctx)
	require.NoError(t, err)
	require.Len(t, committed, 1)

	w, err = s.Write(ctx, accountID)
	require.NoError(t, err)
	earlier := now.Add(-time.Hour)
	tx, err = w.Append(&ledger.Transaction{Type: ledger.TransactionTypeUsage, Amount: -1}, earlier)
	require.NoError(t, err)
	assert.Equal(t, int64(2), tx.Sequence)
	assert.Equal(t, now.Truncate(time.Microsecond), tx.CreatedAt, "creation time never goes backwards")
	assert.Len(t, w.Lots(), 1, "usage opens no lot")
}

func TestWriter_SpendAndLapse(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	accountID := uuid.Must(uuid.NewV4())

	w, err := s.Write(ctx, accountID)
	require.NoError(t, err)
	first, err := w.Append(&ledger.Transaction{Type: ledger.TransactionTypePurchase, Amount: 10}, now)
	require.NoError(t, err)
	second, err := w.Append(&ledger.Transaction{Type: ledger.TransactionTypeRefund, Amount: 4}, now)
	require.NoError(t, err)
	_, err = w.Commit(ctx)
	require.NoError(t, err)

	w, err = s.Write(ctx, accountID)
	require.NoError(t, err)
	require.NoError(t, w.Spend(first.ID, 10))
	assert.Error(t, w.Spend(second.ID, 5), "cannot overdraw a lot")
	forfeited, err := w.Lapse(second.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), forfeited)
	_, err = w.Append(&ledger.Transaction{Type: ledger.TransactionTypeAdjustment, Amount: -4}, now)
	require.NoError(t, err)
	_, err = w.Commit(ctx)
	require.NoError(t, err)

	lots, err := s.Ledger.GetLotsByAccount(ctx, accountID)
	require.NoError(t, err)
	require.Len(t, lots, 2)
	assert.Equal(t, ledger.LotStateExhausted, lots[0].State)
	assert.Equal(t, ledger.LotStateLapsed, lots[1].State)
	assert.Equal(t, int64(0), lots[1].Remaining)
}

func TestWriter_RollbackLeavesNoTrace(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	accountID := uuid.Must(uuid.NewV4())

	w, err := s.Write(ctx, accountID)
	require.NoError(t, err)
	_, err = w.Append(&ledger.Transaction{Type: ledger.TransactionTypePurchase, Amount: 10}, now)
	require.NoError(t, err)
	require.NoError(t, w.Rollback())

	_, err = w.Commit(ctx)
	assert.ErrorIs(t, err, ErrWriterClosed)

	page, err := s.Ledger.ListByAccount(ctx, accountID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
}

func TestWriter_ConcurrentWritersConflict(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	accountID := uuid.Must(uuid.NewV4())

	a, err := s.Write(ctx, accountID)
	require.NoError(t, err)
	b, err := s.Write(ctx, accountID)
	require.NoError(t, err)

	_, err = a.Append(&ledger.Transaction{Type: ledger.TransactionTypePurchase, Amount: 1}, now)
	require.NoError(t, err)
	_, err = b.Append(&ledger.Transaction{Type: ledger.TransactionTypePurchase, Amount: 2}, now)
	require.NoError(t, err)

	_, err = a.Commit(ctx)
	require.NoError(t, err)
	_, err = b.Commit(ctx)
	assert.ErrorIs(t, err, ledger.ErrConflict)
}

func TestWriter_FindIdempotent(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	accountID := uuid.Must(uuid.NewV4())

	w, err := s.Write(ctx, accountID)
	require.NoError(t, err)
	found, err := w.FindIdempotent(ctx, "order-1")
	require.NoError(t, err)
	assert.Nil(t, found)

	tx, err := w.Append(&ledger.Transaction{Type: ledger.TransactionTypePurchase, Amount: 3, IdempotencyKey: "order-1"}, now)
	require.NoError(t, err)
	found, err = w.FindIdempotent(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, tx.ID, found.ID)
	_, err = w.Commit(ctx)
	require.NoError(t, err)

	w, err = s.Write(ctx, accountID)
	require.NoError(t, err)
	found, err = w.FindIdempotent(ctx, "order-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, tx.ID, found.ID)
}

func TestWriter_EmptyCommitIsNoop(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	accountID := uuid.Must(uuid.NewV4())

	w, err := s.Write(ctx, accountID)
	require.NoError(t, err)
	committed, err := w.Commit(ctx)
	require.NoError(t, err)
	assert.Nil(t, committed)

	snap, err := s.Ledger.Snapshot(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), snap.Version)
}
