package service

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jonboulle/clockwork"

	"github.com/carson-networks/credit-ledger/internal/credit"
	"github.com/carson-networks/credit-ledger/internal/metrics"
	"github.com/carson-networks/credit-ledger/internal/operator/actions"
	"github.com/carson-networks/credit-ledger/internal/storage"
)

// BalanceService is the single entry point for reading and moving credit.
// Writes go through the processor, which serialises them per account by
// optimistic retry; reads come from one consistent snapshot.
type BalanceService struct {
	storage   *storage.Storage
	processor Processor
	clock     clockwork.Clock
	lapser    *lazyLapser
}

func NewBalanceService(store *storage.Storage, processor Processor, clock clockwork.Clock, lapser *lazyLapser) *BalanceService {
	return &BalanceService{
		storage:   store,
		processor: processor,
		clock:     clock,
		lapser:    lapser,
	}
}

// GetBalance returns the credit usable now.
func (s *BalanceService) GetBalance(ctx context.Context, accountID uuid.UUID) (int64, error) {
	snap, now, err := s.lapser.snapshot(ctx, accountID)
	if err != nil {
		return 0, mapError(accountID, err)
	}
	return credit.Balance(snap.Lots, now), nil
}

// ActiveLots returns the lots usable now in the order a debit would consume them.
func (s *BalanceService) ActiveLots(ctx context.Context, accountID uuid.UUID) ([]Lot, error) {
	snap, now, err := s.lapser.snapshot(ctx, accountID)
	if err != nil {
		return nil, mapError(accountID, err)
	}

	active := credit.ActiveLots(snap.Lots, now)
	lots := make([]Lot, len(active))
	for i, lot := range active {
		lots[i] = lotFromStorage(lot)
	}
	return lots, nil
}

// GetLots returns every lot the account ever opened, spent and lapsed ones included.
func (s *BalanceService) GetLots(ctx context.Context, accountID uuid.UUID) ([]Lot, error) {
	if s.lapser.enabled {
		if _, _, err := s.lapser.snapshot(ctx, accountID); err != nil {
			return nil, mapError(accountID, err)
		}
	}

	rows, err := s.storage.Ledger.GetLotsByAccount(ctx, accountID)
	if err != nil {
		return nil, mapError(accountID, err)
	}
	lots := make([]Lot, len(rows))
	for i, row := range rows {
		lots[i] = lotFromStorage(row)
	}
	return lots, nil
}

// Credit records a purchase or refund and opens a lot for its full amount.
func (s *BalanceService) Credit(ctx context.Context, req CreditRequest) (*Transaction, error) {
	if req.Amount <= 0 {
		return nil, &credit.InvalidAmountError{Amount: req.Amount}
	}
	if !req.Type.CreatesLot() {
		return nil, &credit.InvalidCreditTypeError{Type: req.Type.String()}
	}
	now := s.clock.Now()
	if req.ExpirationDate != nil && !req.ExpirationDate.After(now) {
		return nil, &credit.InvalidExpirationError{ExpirationDate: *req.ExpirationDate, CreatedAt: now}
	}

	action := &actions.Credit{
		Account:        req.AccountID,
		Amount:         req.Amount,
		Type:           req.Type,
		ExpirationDate: req.ExpirationDate,
		Description:    req.Description,
		IdempotencyKey: req.IdempotencyKey,
		Now:            now,
	}
	if err := s.processor.Process(ctx, action); err != nil {
		return nil, mapError(req.AccountID, err)
	}

	tx := transactionFromStorage(action.Result, nil)
	if !action.Replayed {
		remaining := action.Result.Amount
		tx.RemainingAmount = &remaining
	}
	return &tx, nil
}

// Debit spends amount credits, soonest-expiring lots first. It either commits
// the usage and every lot decrement together or changes nothing.
func (s *BalanceService) Debit(ctx context.Context, req DebitRequest) (*Transaction, error) {
	if req.Amount <= 0 {
		return nil, &credit.InvalidAmountError{Amount: req.Amount}
	}

	action := &actions.Debit{
		Account:        req.AccountID,
		Amount:         req.Amount,
		Description:    req.Description,
		IdempotencyKey: req.IdempotencyKey,
		Now:            s.clock.Now(),
	}
	if err := s.processor.Process(ctx, action); err != nil {
		var insufficient *credit.InsufficientCreditError
		if errors.As(err, &insufficient) {
			metrics.DebitsRejected.Inc()
		}
		return nil, mapError(req.AccountID, err)
	}

	tx := transactionFromStorage(action.Result, nil)
	return &tx, nil
}
