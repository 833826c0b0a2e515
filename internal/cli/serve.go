package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/carson-networks/credit-ledger/api"
	"github.com/carson-networks/credit-ledger/internal/config"
	"github.com/carson-networks/credit-ledger/internal/storage/migrations"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the background expiration sweeper",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Bool("migrate", false, "apply pending schema migrations before serving")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l, err := openLedger()
	if err != nil {
		return err
	}
	defer l.close()
	l.logger.WithField("storeDriver", l.env.StoreDriver).Info("credit-ledger starting")

	if doMigrate, _ := cmd.Flags().GetBool("migrate"); doMigrate && l.env.StoreDriver == config.StoreDriverPostgres {
		pre, post, err := migrations.Up(l.storage.DB)
		if err != nil {
			return err
		}
		l.logger.WithField("preMigrationVersion", pre).
			WithField("postMigrationVersion", post).
			Info("Migration status")
	}

	l.sweeper.Start(ctx)

	rest := api.Rest{
		Logger:  l.logger,
		Port:    l.env.HTTPPort,
		Service: l.service,
		Sweeper: l.sweeper,
		Clock:   l.clock,
	}
	return rest.Serve(ctx)
}
