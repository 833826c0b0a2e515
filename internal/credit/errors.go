package credit

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
)

// InvalidAmountError is returned for a non-positive credit or debit amount.
type InvalidAmountError struct {
	Amount int64
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("credit: amount must be positive, got %d", e.Amount)
}

// InvalidCreditTypeError is returned when a credit is neither a purchase nor a refund.
type InvalidCreditTypeError struct {
	Type string
}

func (e *InvalidCreditTypeError) Error() string {
	return fmt.Sprintf("credit: %q cannot open a lot", e.Type)
}

// InvalidExpirationError is returned when a lot would expire before it is created.
type InvalidExpirationError struct {
	ExpirationDate time.Time
	CreatedAt      time.Time
}

func (e *InvalidExpirationError) Error() string {
	return fmt.Sprintf("credit: expiration %s is not after creation %s",
		e.ExpirationDate.Format(time.RFC3339), e.CreatedAt.Format(time.RFC3339))
}

// InsufficientCreditError is returned when a debit exceeds the usable balance.
type InsufficientCreditError struct {
	Requested int64
	Available int64
}

func (e *InsufficientCreditError) Error() string {
	return fmt.Sprintf("credit: insufficient credit, requested %d, available %d", e.Requested, e.Available)
}

// ConflictError is returned once the commit retry budget is spent on concurrent writers.
type ConflictError struct {
	AccountID uuid.UUID
	Err       error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("credit: account %s is busy: %v", e.AccountID, e.Err)
}

func (e *ConflictError) Unwrap() error { return e.Err }

// StoreUnavailableError wraps a failure of the durable store.
type StoreUnavailableError struct {
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("credit: store unavailable: %v", e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }
