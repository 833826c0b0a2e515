package account

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/credit-ledger/internal/handlers/v1/apierror"
	"github.com/carson-networks/credit-ledger/internal/logging"
	"github.com/carson-networks/credit-ledger/internal/service"
)

// ListLotsInput is the Huma input for listing lots.
type ListLotsInput struct {
	AccountPathInput
	Active bool `query:"active" doc:"Only usable lots, in the order a debit consumes them"`
}

// ListLotsResponse is the response body for listing lots.
type ListLotsResponse struct {
	Lots []Lot `json:"lots" doc:"Credit lots"`
}

// ListLotsOutput is the Huma output for listing lots.
type ListLotsOutput struct {
	Body ListLotsResponse
}

type lotLister interface {
	GetLots(ctx context.Context, accountID uuid.UUID) ([]service.Lot, error)
	ActiveLots(ctx context.Context, accountID uuid.UUID) ([]service.Lot, error)
}

// ListLotsHandler handles GET /v1/account/{accountID}/lots.
type ListLotsHandler struct {
	BalanceService lotLister
}

func NewListLotsHandler(svc lotLister) *ListLotsHandler {
	return &ListLotsHandler{BalanceService: svc}
}

// Register registers the lots endpoint with the Huma API.
func (h *ListLotsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-lots",
		Method:      http.MethodGet,
		Path:        "/v1/account/{accountID}/lots",
		Summary:     "List credit lots",
		Description: "Returns every lot the account opened, or with active=true only the usable ones in consumption order.",
		Tags:        []string{"Accounts"},
	}, h.handle)
}

func (h *ListLotsHandler) handle(ctx context.Context, input *ListLotsInput) (*ListLotsOutput, error) {
	logData := logging.GetLogData(ctx)
	accountID, err := uuid.FromString(input.AccountID)
	if err != nil {
		return nil, huma.NewError(http.StatusBadRequest, "invalid accountID", err)
	}
	if logData != nil {
		logData.AddData("accountID", accountID.String())
		logData.AddData("activeOnly", input.Active)
	}

	var lots []service.Lot
	if input.Active {
		lots, err = h.BalanceService.ActiveLots(ctx, accountID)
	} else {
		lots, err = h.BalanceService.GetLots(ctx, accountID)
	}
	if err != nil {
		return nil, apierror.From(err, "failed to list lots")
	}

	resp := ListLotsResponse{Lots: make([]Lot, len(lots))}
	for i, lot := range lots {
		resp.Lots[i] = lotFromService(lot)
	}
	return &ListLotsOutput{Body: resp}, nil
}
