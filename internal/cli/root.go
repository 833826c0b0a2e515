// Package cli wires configuration, storage and the ledger services into the
// credit-ledger commands.
package cli

import (
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/carson-networks/credit-ledger/internal/config"
	"github.com/carson-networks/credit-ledger/internal/logging"
	"github.com/carson-networks/credit-ledger/internal/operator"
	"github.com/carson-networks/credit-ledger/internal/service"
	"github.com/carson-networks/credit-ledger/internal/storage"
	"github.com/carson-networks/credit-ledger/internal/sweeper"
)

var rootCmd = &cobra.Command{
	Use:           "credit-ledger",
	Short:         "Prepaid credit ledger with expiring lots",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command named on the command line.
func Execute() error {
	return rootCmd.Execute()
}

// ledger is every long-lived component a command may need.
type ledger struct {
	env       *config.Config
	logger    *logrus.Logger
	clock     clockwork.Clock
	storage   *storage.Storage
	delegator *operator.OperatorDelegator
	service   *service.Service
	sweeper   *sweeper.Sweeper
}

func openLedger() (*ledger, error) {
	env, err := config.ProcessEnvironmentVariables()
	if err != nil {
		return nil, err
	}
	logger := logging.SetupLogging(env.LogLevel)

	store, err := storage.NewStorage(env)
	if err != nil {
		return nil, err
	}

	clock := clockwork.NewRealClock()
	delegator := operator.NewOperatorDelegator(store, logger, operator.Options{
		Workers:           env.OperatorWorkers,
		QueueSize:         env.OperatorQueueSize,
		MaxCommitAttempts: env.MaxCommitAttempts,
	})
	delegator.Start()

	return &ledger{
		env:       env,
		logger:    logger,
		clock:     clock,
		storage:   store,
		delegator: delegator,
		service: service.NewService(store, delegator, clock, service.Options{
			LazyLapse:       env.LazyLapse,
			DefaultPageSize: env.DefaultPageSize,
			MaxPageSize:     env.MaxPageSize,
		}),
		sweeper: sweeper.New(store.Ledger, delegator, clock, logger, env.SweepInterval.Duration, env.SweepBatchSize),
	}, nil
}

// close stops the workers before the store they write to.
func (l *ledger) close() {
	l.sweeper.Stop()
	l.delegator.Stop()
	if err := l.storage.Close(); err != nil {
		l.logger.WithError(err).Error("cli.close.storage")
	}
}
