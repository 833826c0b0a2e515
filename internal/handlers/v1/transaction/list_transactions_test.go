package transaction

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/carson-networks/credit-ledger/internal/credit"
	"github.com/carson-networks/credit-ledger/internal/service"
	"github.com/carson-networks/credit-ledger/internal/storage/ledger"
)

type mockTransactionLister struct {
	mock.Mock
}

func (m *mockTransactionLister) ListTransactions(ctx context.Context, accountID uuid.UUID, page, pageSize int) (*service.TransactionPage, error) {
	args := m.Called(ctx, accountID, page, pageSize)
	result, _ := args.Get(0).(*service.TransactionPage)
	return result, args.Error(1)
}

func newListTestAPI(t *testing.T, svc transactionLister) humatest.TestAPI {
	t.Helper()
	_, api := humatest.New(t)
	NewListTransactionsHandler(svc).Register(api)
	return api
}

// -- FromService unit tests --

func TestFromService_Purchase(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	expires := created.Add(30 * 24 * time.Hour)
	remaining := int64(40)

	resp := FromService(service.Transaction{
		ID:              uuid.Must(uuid.NewV7()),
		AccountID:       uuid.Must(uuid.NewV7()),
		Type:            ledger.TransactionTypePurchase,
		Amount:          100,
		RemainingAmount: &remaining,
		Description:     "starter pack",
		ExpirationDate:  &expires,
		CreatedAt:       created,
	})

	assert.Equal(t, "purchase", resp.Type)
	assert.Equal(t, int64(100), resp.Amount)
	require.NotNil(t, resp.RemainingAmount)
	assert.Equal(t, int64(40), *resp.RemainingAmount)
	require.NotNil(t, resp.ExpirationDate)
	assert.Equal(t, "2025-07-01T12:00:00Z", *resp.ExpirationDate)
	assert.Equal(t, "2025-06-01T12:00:00Z", resp.CreatedAt)
}

func TestFromService_Usage(t *testing.T) {
	resp := FromService(service.Transaction{
		Type:      ledger.TransactionTypeUsage,
		Amount:    -25,
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	})

	assert.Equal(t, "usage", resp.Type)
	assert.Equal(t, int64(-25), resp.Amount)
	assert.Nil(t, resp.RemainingAmount)
	assert.Nil(t, resp.ExpirationDate)
}

// -- HTTP integration tests --

func TestHTTP_ListTransactions_Defaults(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	accountID := uuid.Must(uuid.NewV7())
	txID := uuid.Must(uuid.NewV7())

	mockSvc := new(mockTransactionLister)
	mockSvc.On("ListTransactions", mock.Anything, accountID, 0, 0).
		Return(&service.TransactionPage{
			Transactions: []service.Transaction{
				{
					ID:        txID,
					AccountID: accountID,
					Type:      ledger.TransactionTypeUsage,
					Amount:    -10,
					CreatedAt: now,
				},
			},
			Page:  1,
			Pages: 1,
			Total: 1,
		}, nil)

	resp := newListTestAPI(t, mockSvc).Post("/v1/transaction/list", ListTransactionsBody{
		AccountID: accountID.String(),
	})

	assert.Equal(t, http.StatusOK, resp.Code)
	var body ListTransactionsResponseBody
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body.Transactions, 1)
	assert.Equal(t, txID.String(), body.Transactions[0].ID)
	assert.Equal(t, Pagination{Page: 1, Pages: 1, Total: 1}, body.Pagination)
	mockSvc.AssertExpectations(t)
}

func TestHTTP_ListTransactions_PageBeyondEnd(t *testing.T) {
	accountID := uuid.Must(uuid.NewV7())

	mockSvc := new(mockTransactionLister)
	mockSvc.On("ListTransactions", mock.Anything, accountID, 3, 20).
		Return(&service.TransactionPage{Page: 3, Pages: 2, Total: 25}, nil)

	resp := newListTestAPI(t, mockSvc).Post("/v1/transaction/list", ListTransactionsBody{
		AccountID: accountID.String(),
		Page:      3,
		PageSize:  20,
	})

	assert.Equal(t, http.StatusOK, resp.Code)
	var body ListTransactionsResponseBody
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Empty(t, body.Transactions)
	assert.Equal(t, Pagination{Page: 3, Pages: 2, Total: 25}, body.Pagination)
	mockSvc.AssertExpectations(t)
}

func TestHTTP_ListTransactions_ServiceError(t *testing.T) {
	mockSvc := new(mockTransactionLister)
	mockSvc.On("ListTransactions", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return((*service.TransactionPage)(nil), errors.New("database unavailable"))

	resp := newListTestAPI(t, mockSvc).Post("/v1/transaction/list", ListTransactionsBody{
		AccountID: uuid.Must(uuid.NewV7()).String(),
	})

	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	mockSvc.AssertExpectations(t)
}

func TestHTTP_ListTransactions_StoreUnavailable(t *testing.T) {
	mockSvc := new(mockTransactionLister)
	mockSvc.On("ListTransactions", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return((*service.TransactionPage)(nil), &credit.StoreUnavailableError{Err: errors.New("down")})

	resp := newListTestAPI(t, mockSvc).Post("/v1/transaction/list", ListTransactionsBody{
		AccountID: uuid.Must(uuid.NewV7()).String(),
	})

	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	mockSvc.AssertExpectations(t)
}

func TestHTTP_ListTransactions_InvalidAccountID(t *testing.T) {
	mockSvc := new(mockTransactionLister)

	resp := newListTestAPI(t, mockSvc).Post("/v1/transaction/list", ListTransactionsBody{
		AccountID: "not-a-uuid",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	mockSvc.AssertNotCalled(t, "ListTransactions")
}

func TestHTTP_ListTransactions_PageSizeTooLarge(t *testing.T) {
	mockSvc := new(mockTransactionLister)

	resp := newListTestAPI(t, mockSvc).Post("/v1/transaction/list", ListTransactionsBody{
		AccountID: uuid.Must(uuid.NewV7()).String(),
		PageSize:  500,
	})

	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	mockSvc.AssertNotCalled(t, "ListTransactions")
}
