package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carson-networks/credit-ledger/internal/storage/ledger"
)

var base = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

func purchaseBatch(accountID uuid.UUID, version, seq int64, amount int64, key string) *ledger.Batch {
	id := uuid.Must(uuid.NewV7())
	at := base.Add(time.Duration(seq) * time.Second)
	return &ledger.Batch{
		AccountID:       accountID,
		ExpectedVersion: version,
		Transactions: []*ledger.Transaction{{
			ID:             id,
			AccountID:      accountID,
			Sequence:       seq,
			Type:           ledger.TransactionTypePurchase,
			Amount:         amount,
			IdempotencyKey: key,
			CreatedAt:      at,
		}},
		NewLots: []*ledger.Lot{{
			LotID:          id,
			AccountID:      accountID,
			OriginalAmount: amount,
			Remaining:      amount,
			State:          ledger.LotStateActive,
			CreatedAt:      at,
		}},
	}
}

// -- Append tests --

func TestAppend_AdvancesVersion(t *testing.T) {
	store := New()
	accountID := uuid.Must(uuid.NewV4())
	ctx := context.Background()

	committed, err := store.Append(ctx, purchaseBatch(accountID, 0, 1, 10, ""))
	require.NoError(t, err)
	require.Len(t, committed, 1)

	snap, err := store.Snapshot(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.Version)
	assert.Equal(t, int64(1), snap.LastSequence)
	require.Len(t, snap.Lots, 1)
	assert.Equal(t, int64(10), snap.Lots[0].Remaining)
}

func TestAppend_StaleVersionConflicts(t *testing.T) {
	store := New()
	accountID := uuid.Must(uuid.NewV4())
	ctx := context.Background()

	_, err := store.Append(ctx, purchaseBatch(accountID, 0, 1, 10, ""))
	require.NoError(t, err)

	_, err = store.Append(ctx, purchaseBatch(accountID, 0, 2, 10, ""))
	assert.ErrorIs(t, err, ledger.ErrConflict)

	page, err := store.ListByAccount(ctx, accountID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestAppend_DuplicateIdempotencyKeyConflicts(t *testing.T) {
	store := New()
	accountID := uuid.Must(uuid.NewV4())
	ctx := context.Background()

	_, err := store.Append(ctx, purchaseBatch(accountID, 0, 1, 10, "k"))
	require.NoError(t, err)
	_, err = store.Append(ctx, purchaseBatch(accountID, 1, 2, 10, "k"))
	assert.ErrorIs(t, err, ledger.ErrConflict)

	found, err := store.FindByIdempotencyKey(ctx, accountID, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(1), found.Sequence)

	_, err = store.FindByIdempotencyKey(ctx, accountID, "other")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestAppend_RejectsLotIncrease(t *testing.T) {
	store := New()
	accountID := uuid.Must(uuid.NewV4())
	ctx := context.Background()

	first := purchaseBatch(accountID, 0, 1, 10, "")
	_, err := store.Append(ctx, first)
	require.NoError(t, err)

	_, err = store.Append(ctx, &ledger.Batch{
		AccountID:       accountID,
		ExpectedVersion: 1,
		LotUpdates: []ledger.LotUpdate{{
			LotID:     first.NewLots[0].LotID,
			Remaining: 11,
			State:     ledger.LotStateActive,
		}},
	})
	assert.Error(t, err)

	_, err = store.Append(ctx, &ledger.Batch{
		AccountID:       accountID,
		ExpectedVersion: 1,
		LotUpdates: []ledger.LotUpdate{{
			LotID:     uuid.Must(uuid.NewV4()),
			Remaining: 0,
		}},
	})
	assert.True(t, errors.Is(err, ledger.ErrNotFound))

	lots, err := store.GetLotsByAccount(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), lots[0].Remaining)
}

func TestSnapshot_IsolatedFromStore(t *testing.T) {
	store := New()
	accountID := uuid.Must(uuid.NewV4())
	ctx := context.Background()
	_, err := store.Append(ctx, purchaseBatch(accountID, 0, 1, 10, ""))
	require.NoError(t, err)

	snap, err := store.Snapshot(ctx, accountID)
	require.NoError(t, err)
	snap.Lots[0].Remaining = 0

	again, err := store.Snapshot(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), again.Lots[0].Remaining)
}

func TestSnapshot_UnknownAccount(t *testing.T) {
	snap, err := New().Snapshot(context.Background(), uuid.Must(uuid.NewV4()))
	require.NoError(t, err)
	assert.Equal(t, int64(0), snap.Version)
	assert.Empty(t, snap.Lots)
}

// -- ListByAccount tests --

func TestListByAccount_NewestFirstWithLots(t *testing.T) {
	store := New()
	accountID := uuid.Must(uuid.NewV4())
	ctx := context.Background()

	for i := int64(0); i < 5; i++ {
		_, err := store.Append(ctx, purchaseBatch(accountID, i, i+1, 10*(i+1), ""))
		require.NoError(t, err)
	}

	page, err := store.ListByAccount(ctx, accountID, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	require.Len(t, page.Entries, 2)
	assert.Equal(t, int64(30), page.Entries[0].Transaction.Amount)
	assert.Equal(t, int64(20), page.Entries[1].Transaction.Amount)
	require.NotNil(t, page.Entries[0].Lot)
	assert.Equal(t, int64(30), page.Entries[0].Lot.Remaining)

	empty, err := store.ListByAccount(ctx, accountID, 4, 2)
	require.NoError(t, err)
	assert.Empty(t, empty.Entries)
	assert.Equal(t, 5, empty.Total)
}

// -- AccountsWithLapsableLots tests --

func TestAccountsWithLapsableLots(t *testing.T) {
	store := New()
	ctx := context.Background()
	expired := uuid.Must(uuid.NewV4())
	fresh := uuid.Must(uuid.NewV4())

	batch := purchaseBatch(expired, 0, 1, 5, "")
	exp := base.Add(time.Hour)
	batch.NewLots[0].ExpirationDate = &exp
	_, err := store.Append(ctx, batch)
	require.NoError(t, err)

	_, err = store.Append(ctx, purchaseBatch(fresh, 0, 1, 5, ""))
	require.NoError(t, err)

	ids, err := store.AccountsWithLapsableLots(ctx, base.Add(2*time.Hour), 10)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{expired}, ids)

	ids, err = store.AccountsWithLapsableLots(ctx, base, 10)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
