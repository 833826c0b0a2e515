package transaction

import (
	"time"

	"github.com/carson-networks/credit-ledger/internal/service"
)

// Transaction is the API response model for a transaction.
// It is used only for responses, not for request bodies.
type Transaction struct {
	ID              string  `json:"id" doc:"Transaction UUID"`
	AccountID       string  `json:"accountID" doc:"Account UUID"`
	Type            string  `json:"type" enum:"purchase,usage,refund,adjustment" doc:"Transaction type"`
	Amount          int64   `json:"amount" doc:"Credits moved; negative for usage and lapse adjustments"`
	RemainingAmount *int64  `json:"remainingAmount,omitempty" doc:"Credit still left in the lot this transaction opened"`
	Description     string  `json:"description" doc:"Free-form description"`
	CreatedAt       string  `json:"createdAt" doc:"RFC3339 creation time"`
	ExpirationDate  *string `json:"expirationDate,omitempty" doc:"RFC3339 expiration of the lot this transaction opened"`
}

// FromService converts a service transaction into its response model.
func FromService(tx service.Transaction) Transaction {
	resp := Transaction{
		ID:              tx.ID.String(),
		AccountID:       tx.AccountID.String(),
		Type:            tx.Type.String(),
		Amount:          tx.Amount,
		RemainingAmount: tx.RemainingAmount,
		Description:     tx.Description,
		CreatedAt:       tx.CreatedAt.Format(time.RFC3339Nano),
	}
	if tx.ExpirationDate != nil {
		exp := tx.ExpirationDate.Format(time.RFC3339Nano)
		resp.ExpirationDate = &exp
	}
	return resp
}
