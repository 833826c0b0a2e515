package credit

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/credit-ledger/internal/handlers/v1/apierror"
	"github.com/carson-networks/credit-ledger/internal/handlers/v1/transaction"
	"github.com/carson-networks/credit-ledger/internal/logging"
	"github.com/carson-networks/credit-ledger/internal/service"
)

// DebitBody is the request body for spending credit.
type DebitBody struct {
	AccountID      string `json:"accountID" format:"uuid" doc:"Account UUID"`
	Amount         int64  `json:"amount" doc:"Credits to spend, must be positive"`
	Description    string `json:"description,omitempty" doc:"Free-form description"`
	IdempotencyKey string `json:"idempotencyKey,omitempty" doc:"Replaying a key returns the original transaction"`
}

// DebitInput is the Huma input for spending credit.
type DebitInput struct {
	Body DebitBody
}

type debiter interface {
	Debit(ctx context.Context, req service.DebitRequest) (*service.Transaction, error)
}

// DebitHandler handles POST /v1/debit.
type DebitHandler struct {
	BalanceService debiter
}

func NewDebitHandler(svc debiter) *DebitHandler {
	return &DebitHandler{BalanceService: svc}
}

// Register registers the debit endpoint with the Huma API.
func (h *DebitHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "debit-account",
		Method:        http.MethodPost,
		Path:          "/v1/debit",
		Summary:       "Spend credit",
		Description:   "Spends credit from the soonest-expiring lots first. Responds 402 and changes nothing when the balance is short.",
		Tags:          []string{"Credit"},
		DefaultStatus: http.StatusCreated,
	}, h.handle)
}

func (h *DebitHandler) handle(ctx context.Context, input *DebitInput) (*TransactionOutput, error) {
	logData := logging.GetLogData(ctx)
	accountID, err := uuid.FromString(input.Body.AccountID)
	if err != nil {
		return nil, huma.NewError(http.StatusBadRequest, "invalid accountID", err)
	}

	var stopTimer func()
	if logData != nil {
		logData.AddData("accountID", accountID.String())
		logData.AddData("amount", input.Body.Amount)
		stopTimer = logData.AddTiming("debitMs")
	}
	tx, err := h.BalanceService.Debit(ctx, service.DebitRequest{
		AccountID:      accountID,
		Amount:         input.Body.Amount,
		Description:    input.Body.Description,
		IdempotencyKey: input.Body.IdempotencyKey,
	})
	if stopTimer != nil {
		stopTimer()
	}
	if err != nil {
		return nil, apierror.From(err, "failed to spend credit")
	}

	if logData != nil {
		logData.AddData("transactionID", tx.ID.String())
	}
	return &TransactionOutput{
		Status: http.StatusCreated,
		Body:   transaction.FromService(*tx),
	}, nil
}
