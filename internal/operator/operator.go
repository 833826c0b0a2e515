package operator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/carson-networks/credit-ledger/internal/credit"
	"github.com/carson-networks/credit-ledger/internal/logging"
	"github.com/carson-networks/credit-ledger/internal/metrics"
	"github.com/carson-networks/credit-ledger/internal/operator/actions"
	"github.com/carson-networks/credit-ledger/internal/storage"
	"github.com/carson-networks/credit-ledger/internal/storage/ledger"
)

// Operator is the worker that processes items from the queue.
type Operator struct {
	storage *storage.Storage
	queue   chan ActionItem
	logger  *logrus.Logger

	maxAttempts int
	newBackOff  func() backoff.BackOff
}

func NewOperator(s *storage.Storage, queue chan ActionItem, logger *logrus.Logger, maxAttempts int) *Operator {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Operator{
		storage:     s,
		queue:       queue,
		logger:      logger,
		maxAttempts: maxAttempts,
		newBackOff:  conflictBackOff,
	}
}

func conflictBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 100 * time.Millisecond
	b.MaxElapsedTime = 0
	return b
}

// Run listens to the queue and processes items. Exits when the queue is closed.
func (o *Operator) Run() {
	for item := range o.queue {
		metrics.QueueDepth.Dec()
		o.processItem(item)
	}
}

func (o *Operator) processItem(item ActionItem) {
	start := time.Now()
	err := o.perform(item.ctx, item.action)

	metrics.ActionDuration.
		WithLabelValues(item.action.Name(), outcome(err)).
		Observe(time.Since(start).Seconds())

	item.response <- ActionItemResponse{err: err}
}

// perform runs the action on a fresh writer until it commits, fails for a reason
// other than a conflict, or runs out of attempts.
func (o *Operator) perform(ctx context.Context, action actions.IAction) error {
	logData := logging.GetLogData(ctx)
	attempts := 0
	policy := backoff.WithContext(
		backoff.WithMaxRetries(o.newBackOff(), uint64(o.maxAttempts-1)),
		ctx,
	)

	err := backoff.RetryNotify(func() error {
		attempts++
		if logData != nil {
			defer logData.AddToExistingTiming("ledgerWriteMs")()
		}
		err := o.attempt(ctx, action)
		if err == nil || errors.Is(err, ledger.ErrConflict) {
			return err
		}
		return backoff.Permanent(err)
	}, policy, func(err error, wait time.Duration) {
		metrics.CommitConflicts.Inc()
		o.logger.WithFields(logrus.Fields{
			"action":    action.Name(),
			"accountID": action.AccountID().String(),
			"attempt":   attempts,
			"wait":      wait.String(),
		}).Debug("Operator.perform.conflict")
	})
	if logData != nil {
		logData.AddData("commitAttempts", attempts)
	}

	if errors.Is(err, ledger.ErrConflict) {
		o.logger.WithFields(logrus.Fields{
			"action":    action.Name(),
			"accountID": action.AccountID().String(),
			"attempts":  attempts,
		}).Warn("Operator.perform.retriesExhausted")
		return fmt.Errorf("operator: %s gave up after %d attempts: %w", action.Name(), attempts, err)
	}
	return err
}

func (o *Operator) attempt(ctx context.Context, action actions.IAction) error {
	writer, err := o.storage.Write(ctx, action.AccountID())
	if err != nil {
		return err
	}

	err = action.Perform(ctx, writer)
	if err != nil {
		_ = writer.Rollback()
		return err
	}

	committed, err := writer.Commit(ctx)
	if err != nil {
		return err
	}
	for _, tx := range committed {
		metrics.TransactionsCommitted.WithLabelValues(tx.Type.String()).Inc()
		if tx.Type == ledger.TransactionTypeAdjustment && tx.Description == actions.ExpiredDescription {
			metrics.LotsLapsed.Inc()
		}
	}
	return nil
}

func outcome(err error) string {
	var insufficient *credit.InsufficientCreditError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &insufficient):
		return "insufficient"
	case errors.Is(err, ledger.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}

type ActionItem struct {
	ctx      context.Context
	action   actions.IAction
	response chan ActionItemResponse
}

type ActionItemResponse struct {
	err error
}
