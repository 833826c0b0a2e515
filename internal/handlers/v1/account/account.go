package account

import (
	"time"

	"github.com/carson-networks/credit-ledger/internal/service"
)

// Lot is the API response model for a credit lot.
type Lot struct {
	LotID          string  `json:"lotID" doc:"UUID of the transaction that opened the lot"`
	OriginalAmount int64   `json:"originalAmount" doc:"Credits the lot opened with"`
	Remaining      int64   `json:"remaining" doc:"Credits still usable"`
	State          string  `json:"state" enum:"active,exhausted,lapsed" doc:"Lifecycle state"`
	ExpirationDate *string `json:"expirationDate,omitempty" doc:"RFC3339 expiration, absent for credit that never lapses"`
	CreatedAt      string  `json:"createdAt" doc:"RFC3339 creation time"`
}

func lotFromService(lot service.Lot) Lot {
	resp := Lot{
		LotID:          lot.LotID.String(),
		OriginalAmount: lot.OriginalAmount,
		Remaining:      lot.Remaining,
		State:          lot.State.String(),
		CreatedAt:      lot.CreatedAt.Format(time.RFC3339Nano),
	}
	if lot.ExpirationDate != nil {
		exp := lot.ExpirationDate.Format(time.RFC3339Nano)
		resp.ExpirationDate = &exp
	}
	return resp
}

// AccountPathInput addresses one account.
type AccountPathInput struct {
	AccountID string `path:"accountID" format:"uuid" doc:"Account UUID"`
}
