package transaction

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/credit-ledger/internal/handlers/v1/apierror"
	"github.com/carson-networks/credit-ledger/internal/logging"
	"github.com/carson-networks/credit-ledger/internal/service"
)

// ListTransactionsBody is the request body for listing transactions.
type ListTransactionsBody struct {
	AccountID string `json:"accountID" format:"uuid" doc:"Account UUID"`
	Page      int    `json:"page,omitempty" minimum:"1" doc:"1-based page number, defaults to 1"`
	PageSize  int    `json:"pageSize,omitempty" minimum:"1" maximum:"100" doc:"Transactions per page, defaults to the server setting"`
}

// ListTransactionsInput is the Huma input for listing transactions.
type ListTransactionsInput struct {
	Body ListTransactionsBody
}

// Pagination describes where a page sits in the full history.
type Pagination struct {
	Page  int `json:"page" doc:"Page returned"`
	Pages int `json:"pages" doc:"Total number of pages"`
	Total int `json:"total" doc:"Total number of transactions"`
}

// ListTransactionsResponseBody is the response body for listing transactions.
type ListTransactionsResponseBody struct {
	Transactions []Transaction `json:"transactions" doc:"Page of transactions, newest first"`
	Pagination   Pagination    `json:"pagination"`
}

// ListTransactionsOutput is the Huma output for listing transactions.
type ListTransactionsOutput struct {
	Body ListTransactionsResponseBody
}

// transactionLister is the interface for listing transactions.
type transactionLister interface {
	ListTransactions(ctx context.Context, accountID uuid.UUID, page, pageSize int) (*service.TransactionPage, error)
}

// ListTransactionsHandler handles POST /v1/transaction/list.
type ListTransactionsHandler struct {
	TransactionService transactionLister
}

// NewListTransactionsHandler creates a new ListTransactionsHandler.
func NewListTransactionsHandler(svc transactionLister) *ListTransactionsHandler {
	return &ListTransactionsHandler{TransactionService: svc}
}

// Register registers the list transactions endpoint with the Huma API.
func (h *ListTransactionsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-transactions",
		Method:      http.MethodPost,
		Path:        "/v1/transaction/list",
		Summary:     "List transactions",
		Description: "Returns one page of an account's transactions, newest first.",
		Tags:        []string{"Transactions"},
	}, h.handle)
}

func (h *ListTransactionsHandler) handle(ctx context.Context, input *ListTransactionsInput) (*ListTransactionsOutput, error) {
	logData := logging.GetLogData(ctx)

	accountID, err := uuid.FromString(input.Body.AccountID)
	if err != nil {
		return nil, huma.NewError(http.StatusBadRequest, "invalid accountID", err)
	}

	var stopTimer func()
	if logData != nil {
		logData.AddData("accountID", accountID.String())
		stopTimer = logData.AddTiming("listTransactionsMs")
	}
	page, err := h.TransactionService.ListTransactions(ctx, accountID, input.Body.Page, input.Body.PageSize)
	if stopTimer != nil {
		stopTimer()
	}
	if err != nil {
		return nil, apierror.From(err, "failed to list transactions")
	}

	if logData != nil {
		logData.AddData("transactionCount", len(page.Transactions))
	}

	resp := ListTransactionsResponseBody{
		Transactions: make([]Transaction, len(page.Transactions)),
		Pagination: Pagination{
			Page:  page.Page,
			Pages: page.Pages,
			Total: page.Total,
		},
	}
	for i, tx := range page.Transactions {
		resp.Transactions[i] = FromService(tx)
	}

	return &ListTransactionsOutput{Body: resp}, nil
}
