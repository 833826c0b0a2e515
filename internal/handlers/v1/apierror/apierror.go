// Package apierror maps ledger errors onto HTTP status codes.
package apierror

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/carson-networks/credit-ledger/internal/credit"
)

// From converts err into a huma status error. msg is used for failures the
// caller cannot act on; domain errors carry their own message.
func From(err error, msg string) error {
	var (
		invalidAmount     *credit.InvalidAmountError
		invalidType       *credit.InvalidCreditTypeError
		invalidExpiration *credit.InvalidExpirationError
		insufficient      *credit.InsufficientCreditError
		conflict          *credit.ConflictError
		unavailable       *credit.StoreUnavailableError
	)

	switch {
	case errors.As(err, &invalidAmount), errors.As(err, &invalidType), errors.As(err, &invalidExpiration):
		return huma.NewError(http.StatusBadRequest, err.Error(), err)
	case errors.As(err, &insufficient):
		return huma.NewError(http.StatusPaymentRequired, "insufficient credit", err)
	case errors.As(err, &conflict):
		return huma.NewError(http.StatusConflict, "account is busy, retry the request", err)
	case errors.As(err, &unavailable):
		return huma.NewError(http.StatusServiceUnavailable, "ledger store unavailable", err)
	default:
		return huma.NewError(http.StatusInternalServerError, msg, err)
	}
}
