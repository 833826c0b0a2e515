package account

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

type mockBalanceService struct {
	mock.Mock
}

func (m *mockBalanceService) GetBalance(ctx context.Context, accountID uuid.UUID) (int64, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockBalanceService) GetLots(ctx context.Context, accountID uuid.UUID) ([]service.Lot, error) {
	args := m.Called(ctx, accountID)
	lots, _ := args.Get(0).([]service.Lot)
	return lots, args.Error(1)
}

func (m *mockBalanceService) ActiveLots(ctx context.Context, accountID uuid.UUID) ([]service.Lot, error) {
	args := m.Called(ctx, accountID)
	lots, _ := args.Get(0).([]service.Lot)
	return lots, args.Error(1)
}

func newTestAPI(t *testing.T, svc *mockBalanceService) humatest.TestAPI {
	t.Helper()
	_, api := humatest.New(t)
	NewGetBalanceHandler(svc).Register(api)
	NewListLotsHandler(svc).Register(api)
	return api
}

// -- balance --

func TestHTTP_GetBalance(t *testing.T) {
	accountID := uuid.Must(uuid.NewV7())

	mockSvc := new(mockBalanceService)
	mockSvc.On("GetBalance", mock.Anything, accountID).Return(int64(70), nil)

	resp := newTestAPI(t, mockSvc).Get("/v1/account/" + accountID.String() + "/balance")

	assert.Equal(t, http.StatusOK, resp.Code)
	var body BalanceResponse
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, accountID.String(), body.AccountID)
	assert.Equal(t, int64(70), body.Balance)
	mockSvc.AssertExpectations(t)
}

func TestHTTP_GetBalance_InvalidAccountID(t *testing.T) {
	mockSvc := new(mockBalanceService)

	resp := newTestAPI(t, mockSvc).Get("/v1/account/not-a-uuid/balance")

	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	mockSvc.AssertNotCalled(t, "GetBalance")
}

func TestHTTP_GetBalance_StoreUnavailable(t *testing.T) {
	mockSvc := new(mockBalanceService)
	mockSvc.On("GetBalance", mock.Anything, mock.Anything).
		Return(int64(0), &credit.StoreUnavailableError{Err: errors.New("down")})

	resp := newTestAPI(t, mockSvc).Get("/v1/account/" + uuid.Must(uuid.NewV7()).String() + "/balance")

	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	mockSvc.AssertExpectations(t)
}

// -- lots --

func TestHTTP_ListLots_All(t *testing.T) {
	accountID := uuid.Must(uuid.NewV7())
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	expires := created.Add(time.Hour)

	mockSvc := new(mockBalanceService)
	mockSvc.On("GetLots", mock.Anything, accountID).Return([]service.Lot{
		{
			LotID:          uuid.Must(uuid.NewV7()),
			OriginalAmount: 100,
			Remaining:      0,
			State:          ledger.LotStateLapsed,
			ExpirationDate: &expires,
			CreatedAt:      created,
		},
		{
			LotID:          uuid.Must(uuid.NewV7()),
			OriginalAmount: 50,
			Remaining:      50,
			State:          ledger.LotStateActive,
			CreatedAt:      created,
		},
	}, nil)

	resp := newTestAPI(t, mockSvc).Get("/v1/account/" + accountID.String() + "/lots")

	assert.Equal(t, http.StatusOK, resp.Code)
	var body ListLotsResponse
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Lots, 2)
	assert.Equal(t, "lapsed", body.Lots[0].State)
	require.NotNil(t, body.Lots[0].ExpirationDate)
	assert.Equal(t, "2025-06-01T13:00:00Z", *body.Lots[0].ExpirationDate)
	assert.Equal(t, "active", body.Lots[1].State)
	assert.Nil(t, body.Lots[1].ExpirationDate)
	mockSvc.AssertExpectations(t)
}

func TestHTTP_ListLots_ActiveOnly(t *testing.T) {
	accountID := uuid.Must(uuid.NewV7())

	mockSvc := new(mockBalanceService)
	mockSvc.On("ActiveLots", mock.Anything, accountID).Return([]service.Lot{}, nil)

	resp := newTestAPI(t, mockSvc).Get("/v1/account/" + accountID.String() + "/lots?active=true")

	assert.Equal(t, http.StatusOK, resp.Code)
	var body ListLotsResponse
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Empty(t, body.Lots)
	mockSvc.AssertExpectations(t)
	mockSvc.AssertNotCalled(t, "GetLots")
}
