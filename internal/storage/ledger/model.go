package ledger

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// TransactionType is the closed set of ledger transaction kinds.
type TransactionType int8

const (
	TransactionTypePurchase TransactionType = iota
	TransactionTypeUsage
	TransactionTypeRefund
	TransactionTypeAdjustment
)

var transactionTypeNames = map[TransactionType]string{
	TransactionTypePurchase:   "purchase",
	TransactionTypeUsage:      "usage",
	TransactionTypeRefund:     "refund",
	TransactionTypeAdjustment: "adjustment",
}

func (t TransactionType) String() string {
	if name, ok := transactionTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// CreatesLot reports whether committing a transaction of this type opens a credit lot.
func (t TransactionType) CreatesLot() bool {
	return t == TransactionTypePurchase || t == TransactionTypeRefund
}

// Valid reports whether t is one of the declared types.
func (t TransactionType) Valid() bool {
	_, ok := transactionTypeNames[t]
	return ok
}

// ParseTransactionType maps the wire name back to a TransactionType.
func ParseTransactionType(s string) (TransactionType, bool) {
	for t, name := range transactionTypeNames {
		if name == s {
			return t, true
		}
	}
	return 0, false
}

// LotState is the lifecycle state of a credit lot.
type LotState int8

const (
	LotStateActive LotState = iota
	LotStateExhausted
	LotStateLapsed
)

func (s LotState) String() string {
	switch s {
	case LotStateActive:
		return "active"
	case LotStateExhausted:
		return "exhausted"
	case LotStateLapsed:
		return "lapsed"
	}
	return "unknown"
}

// Transaction is an immutable ledger record.
type Transaction struct {
	ID             uuid.UUID
	AccountID      uuid.UUID
	Sequence       int64
	Type           TransactionType
	Amount         int64
	Description    string
	ExpirationDate *time.Time
	IdempotencyKey string
	CreatedAt      time.Time
}

// Lot is the consumable remainder of a purchase or refund transaction.
// LotID equals the ID of the transaction that opened it.
type Lot struct {
	LotID          uuid.UUID
	AccountID      uuid.UUID
	OriginalAmount int64
	Remaining      int64
	ExpirationDate *time.Time
	State          LotState
	CreatedAt      time.Time
}

// Clone returns a copy that shares no pointers with l.
func (l *Lot) Clone() *Lot {
	c := *l
	if l.ExpirationDate != nil {
		exp := *l.ExpirationDate
		c.ExpirationDate = &exp
	}
	return &c
}

// ExpiredAt reports whether the lot's expiration date is at or before asOf.
func (l *Lot) ExpiredAt(asOf time.Time) bool {
	return l.ExpirationDate != nil && !l.ExpirationDate.After(asOf)
}

// LotUpdate is the new remainder and state of an existing lot.
type LotUpdate struct {
	LotID     uuid.UUID
	Remaining int64
	State     LotState
}

// Snapshot is a consistent view of one account's mutable ledger state.
// Lots holds only the lots with a positive remainder.
type Snapshot struct {
	AccountID     uuid.UUID
	Version       int64
	LastSequence  int64
	LastCreatedAt time.Time
	Lots          []*Lot
}

// Batch is everything one logical operation commits for an account.
// It is applied only if the account is still at ExpectedVersion.
type Batch struct {
	AccountID       uuid.UUID
	ExpectedVersion int64
	Transactions    []*Transaction
	NewLots         []*Lot
	LotUpdates      []LotUpdate
}

// Empty reports whether the batch would write nothing.
func (b *Batch) Empty() bool {
	return len(b.Transactions) == 0 && len(b.NewLots) == 0 && len(b.LotUpdates) == 0
}

// Entry is a listed transaction joined with the current state of the lot it opened, if any.
type Entry struct {
	Transaction *Transaction
	Lot         *Lot
}

// Page is one page of an account's transactions, newest first.
type Page struct {
	Entries []*Entry
	Total   int
}
