package service

import (
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/credit-ledger/internal/storage/ledger"
)

// Transaction represents a ledger transaction in the service layer.
// RemainingAmount is the current remainder of the lot the transaction opened,
// nil for transactions that do not open one.
type Transaction struct {
	ID              uuid.UUID
	AccountID       uuid.UUID
	Type            ledger.TransactionType
	Amount          int64
	RemainingAmount *int64
	Description     string
	ExpirationDate  *time.Time
	CreatedAt       time.Time
}

// TransactionPage is one page of an account's history, newest first.
type TransactionPage struct {
	Transactions []Transaction
	Page         int
	Pages        int
	Total        int
}

// CreditRequest is the input for a purchase or refund.
type CreditRequest struct {
	AccountID      uuid.UUID
	Amount         int64
	Type           ledger.TransactionType
	ExpirationDate *time.Time
	Description    string
	IdempotencyKey string
}

// DebitRequest is the input for spending credits.
type DebitRequest struct {
	AccountID      uuid.UUID
	Amount         int64
	Description    string
	IdempotencyKey string
}

// Lot represents a credit lot in the service layer.
type Lot struct {
	LotID          uuid.UUID
	OriginalAmount int64
	Remaining      int64
	ExpirationDate *time.Time
	State          ledger.LotState
	CreatedAt      time.Time
}

func transactionFromStorage(tx *ledger.Transaction, lot *ledger.Lot) Transaction {
	converted := Transaction{
		ID:             tx.ID,
		AccountID:      tx.AccountID,
		Type:           tx.Type,
		Amount:         tx.Amount,
		Description:    tx.Description,
		ExpirationDate: tx.ExpirationDate,
		CreatedAt:      tx.CreatedAt,
	}
	if lot != nil {
		remaining := lot.Remaining
		converted.RemainingAmount = &remaining
	}
	return converted
}

func lotFromStorage(lot *ledger.Lot) Lot {
	return Lot{
		LotID:          lot.LotID,
		OriginalAmount: lot.OriginalAmount,
		Remaining:      lot.Remaining,
		ExpirationDate: lot.ExpirationDate,
		State:          lot.State,
		CreatedAt:      lot.CreatedAt,
	}
}
