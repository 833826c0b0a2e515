package account

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/credit-ledger/internal/handlers/v1/apierror"
	"github.com/carson-networks/credit-ledger/internal/logging"
)

// BalanceResponse is the response body for an account balance.
type BalanceResponse struct {
	AccountID string `json:"accountID" doc:"Account UUID"`
	Balance   int64  `json:"balance" doc:"Credits usable now"`
}

// GetBalanceOutput is the Huma output for an account balance.
type GetBalanceOutput struct {
	Body BalanceResponse
}

type balanceGetter interface {
	GetBalance(ctx context.Context, accountID uuid.UUID) (int64, error)
}

// GetBalanceHandler handles GET /v1/account/{accountID}/balance.
type GetBalanceHandler struct {
	BalanceService balanceGetter
}

func NewGetBalanceHandler(svc balanceGetter) *GetBalanceHandler {
	return &GetBalanceHandler{BalanceService: svc}
}

// Register registers the balance endpoint with the Huma API.
func (h *GetBalanceHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "get-balance",
		Method:      http.MethodGet,
		Path:        "/v1/account/{accountID}/balance",
		Summary:     "Get balance",
		Description: "Returns the credit usable now. Expired credit is never counted; an unknown account has a balance of 0.",
		Tags:        []string{"Accounts"},
	}, h.handle)
}

func (h *GetBalanceHandler) handle(ctx context.Context, input *AccountPathInput) (*GetBalanceOutput, error) {
	logData := logging.GetLogData(ctx)
	accountID, err := uuid.FromString(input.AccountID)
	if err != nil {
		return nil, huma.NewError(http.StatusBadRequest, "invalid accountID", err)
	}
	if logData != nil {
		logData.AddData("accountID", accountID.String())
	}

	balance, err := h.BalanceService.GetBalance(ctx, accountID)
	if err != nil {
		return nil, apierror.From(err, "failed to read balance")
	}

	return &GetBalanceOutput{Body: BalanceResponse{
		AccountID: accountID.String(),
		Balance:   balance,
	}}, nil
}
