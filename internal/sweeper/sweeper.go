// Package sweeper lapses expired credit across all accounts, either on demand
// or on a fixed interval.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/carson-networks/credit-ledger/internal/operator/actions"
	"github.com/carson-networks/credit-ledger/internal/storage"
	"github.com/carson-networks/credit-ledger/internal/storage/ledger"
)

type processor interface {
	Process(ctx context.Context, action actions.IAction) error
}

type Sweeper struct {
	store     ledger.ILedgerStore
	processor processor
	clock     clockwork.Clock
	logger    *logrus.Logger
	interval  time.Duration
	batchSize int

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func New(store ledger.ILedgerStore, p processor, clock clockwork.Clock, logger *logrus.Logger, interval time.Duration, batchSize int) *Sweeper {
	if batchSize < 1 {
		batchSize = 100
	}
	return &Sweeper{
		store:     store,
		processor: p,
		clock:     clock,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
		stopChan:  make(chan struct{}),
	}
}

// Sweep lapses every lot that still holds credit at or past its expiration as
// of asOf, one account at a time, and returns how many lots it lapsed. An
// account that fails is skipped; its error is returned once every other
// account has been swept.
func (s *Sweeper) Sweep(ctx context.Context, asOf time.Time) (int, error) {
	asOf = storage.Timestamp(asOf)
	lapsed := 0
	failed := make(map[uuid.UUID]error)

	for {
		if err := ctx.Err(); err != nil {
			return lapsed, err
		}
		ids, err := s.store.AccountsWithLapsableLots(ctx, asOf, s.batchSize+len(failed))
		if err != nil {
			return lapsed, err
		}

		passLapsed, passFailed := 0, 0
		for _, accountID := range ids {
			if _, skip := failed[accountID]; skip {
				continue
			}

			action := &actions.Lapse{Account: accountID, AsOf: asOf, Now: s.clock.Now()}
			if err := s.processor.Process(ctx, action); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return lapsed, ctxErr
				}
				s.logger.WithFields(logrus.Fields{
					"accountID": accountID.String(),
					"error":     err.Error(),
				}).Error("Sweeper.Sweep.accountFailed")
				failed[accountID] = err
				passFailed++
				continue
			}
			passLapsed += action.Lapsed
		}
		lapsed += passLapsed

		// A listed account with nothing to lapse would be listed again forever.
		if passLapsed == 0 && passFailed == 0 {
			break
		}
	}

	errs := make([]error, 0, len(failed))
	for accountID, err := range failed {
		errs = append(errs, fmt.Errorf("sweeper: account %s: %w", accountID, err))
	}
	return lapsed, errors.Join(errs...)
}

// Start runs Sweep every interval until Stop is called or ctx ends.
func (s *Sweeper) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
	s.logger.WithField("interval", s.interval.String()).Info("Sweeper.Start.started")
}

func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.tick(ctx)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	start := s.clock.Now()
	lapsed, err := s.Sweep(ctx, start)

	fields := logrus.Fields{
		"lapsed":   lapsed,
		"duration": s.clock.Since(start).String(),
	}
	if err != nil {
		fields["error"] = err.Error()
		s.logger.WithFields(fields).Error("Sweeper.tick.failed")
		return
	}
	if lapsed > 0 {
		s.logger.WithFields(fields).Info("Sweeper.tick.lapsed")
	}
}
