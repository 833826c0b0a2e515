// Package credit exposes the endpoints that move credit into and out of an account.
package credit

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gofrs/uuid/v5"

	domain "github.com/carson-networks/credit-ledger/internal/credit"
	"github.com/carson-networks/credit-ledger/internal/handlers/v1/apierror"
	"github.com/carson-networks/credit-ledger/internal/handlers/v1/transaction"
	"github.com/carson-networks/credit-ledger/internal/logging"
	"github.com/carson-networks/credit-ledger/internal/service"
	"github.com/carson-networks/credit-ledger/internal/storage/ledger"
)

// CreditBody is the request body for adding credit. Amount and type are
// checked by the ledger so that every rule reports the same error shape.
type CreditBody struct {
	AccountID      string `json:"accountID" format:"uuid" doc:"Account UUID"`
	Amount         int64  `json:"amount" doc:"Credits to add, must be positive"`
	Type           string `json:"type" doc:"purchase or refund"`
	ExpirationDate string `json:"expirationDate,omitempty" format:"date-time" doc:"RFC3339 time the credit lapses, never when absent"`
	Description    string `json:"description,omitempty" doc:"Free-form description"`
	IdempotencyKey string `json:"idempotencyKey,omitempty" doc:"Replaying a key returns the original transaction"`
}

// CreditInput is the Huma input for adding credit.
type CreditInput struct {
	Body CreditBody
}

// TransactionOutput is the response for any request that records a transaction.
type TransactionOutput struct {
	Status int
	Body   transaction.Transaction
}

type crediter interface {
	Credit(ctx context.Context, req service.CreditRequest) (*service.Transaction, error)
}

// CreditHandler handles POST /v1/credit.
type CreditHandler struct {
	BalanceService crediter
}

func NewCreditHandler(svc crediter) *CreditHandler {
	return &CreditHandler{BalanceService: svc}
}

// Register registers the credit endpoint with the Huma API.
func (h *CreditHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "credit-account",
		Method:        http.MethodPost,
		Path:          "/v1/credit",
		Summary:       "Add credit",
		Description:   "Records a purchase or refund and opens a lot holding its full amount.",
		Tags:          []string{"Credit"},
		DefaultStatus: http.StatusCreated,
	}, h.handle)
}

func parseCreditInput(input *CreditInput) (service.CreditRequest, error) {
	accountID, err := uuid.FromString(input.Body.AccountID)
	if err != nil {
		return service.CreditRequest{}, huma.NewError(http.StatusBadRequest, "invalid accountID", err)
	}

	txType, ok := ledger.ParseTransactionType(input.Body.Type)
	if !ok {
		return service.CreditRequest{}, apierror.From(&domain.InvalidCreditTypeError{Type: input.Body.Type}, "")
	}

	req := service.CreditRequest{
		AccountID:      accountID,
		Amount:         input.Body.Amount,
		Type:           txType,
		Description:    input.Body.Description,
		IdempotencyKey: input.Body.IdempotencyKey,
	}

	if input.Body.ExpirationDate != "" {
		expires, err := time.Parse(time.RFC3339, input.Body.ExpirationDate)
		if err != nil {
			return service.CreditRequest{}, huma.NewError(http.StatusBadRequest, "invalid expirationDate", err)
		}
		req.ExpirationDate = &expires
	}
	return req, nil
}

func (h *CreditHandler) handle(ctx context.Context, input *CreditInput) (*TransactionOutput, error) {
	logData := logging.GetLogData(ctx)
	req, err := parseCreditInput(input)
	if err != nil {
		return nil, err
	}

	var stopTimer func()
	if logData != nil {
		logData.AddData("accountID", req.AccountID.String())
		logData.AddData("amount", req.Amount)
		stopTimer = logData.AddTiming("creditMs")
	}
	tx, err := h.BalanceService.Credit(ctx, req)
	if stopTimer != nil {
		stopTimer()
	}
	if err != nil {
		return nil, apierror.From(err, "failed to add credit")
	}

	if logData != nil {
		logData.AddData("transactionID", tx.ID.String())
	}
	return &TransactionOutput{
		Status: http.StatusCreated,
		Body:   transaction.FromService(*tx),
	}, nil
}
