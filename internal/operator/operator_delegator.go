package operator

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/carson-networks/credit-ledger/internal/metrics"
	"github.com/carson-networks/credit-ledger/internal/operator/actions"
	"github.com/carson-networks/credit-ledger/internal/storage"
)

var ErrStopped = errors.New("operator: delegator stopped")

type Options struct {
	Workers           int
	QueueSize         int
	MaxCommitAttempts int
}

// OperatorDelegator manages the queue, starts/stops Operators (workers), and enqueues items.
type OperatorDelegator struct {
	storage *storage.Storage
	logger  *logrus.Logger
	opts    Options

	queue    chan ActionItem
	mu       sync.RWMutex
	stopped  bool
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewOperatorDelegator(s *storage.Storage, logger *logrus.Logger, opts Options) *OperatorDelegator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 1000
	}
	return &OperatorDelegator{
		storage: s,
		logger:  logger,
		opts:    opts,
		queue:   make(chan ActionItem, opts.QueueSize),
	}
}

func (d *OperatorDelegator) Start() {
	for i := 0; i < d.opts.Workers; i++ {
		d.wg.Add(1)
		op := NewOperator(d.storage, d.queue, d.logger, d.opts.MaxCommitAttempts)
		go func() {
			defer d.wg.Done()
			op.Run()
		}()
	}
	d.logger.WithField("workers", d.opts.Workers).Info("OperatorDelegator.Start.started")
}

// Stop drains the queue and waits for in-flight actions to finish.
func (d *OperatorDelegator) Stop() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.stopped = true
		close(d.queue)
		d.mu.Unlock()
		d.wg.Wait()
		d.logger.Info("OperatorDelegator.Stop.stopped")
	})
}

// Process enqueues the action and waits for it to commit or fail.
func (d *OperatorDelegator) Process(ctx context.Context, action actions.IAction) error {
	respCh := make(chan ActionItemResponse, 1)
	item := ActionItem{
		ctx:      ctx,
		action:   action,
		response: respCh,
	}

	if err := d.enqueue(ctx, item); err != nil {
		return err
	}

	select {
	case resp := <-respCh:
		return resp.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *OperatorDelegator) enqueue(ctx context.Context, item ActionItem) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrStopped
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	metrics.QueueDepth.Inc()
	select {
	case d.queue <- item:
		return nil
	case <-ctx.Done():
		metrics.QueueDepth.Dec()
		return ctx.Err()
	}
}
