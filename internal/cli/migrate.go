package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/carson-networks/credit-ledger/internal/config"
	"github.com/carson-networks/credit-ledger/internal/storage/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations to the configured database",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	l, err := openLedger()
	if err != nil {
		return err
	}
	defer l.close()

	if l.env.StoreDriver != config.StoreDriverPostgres {
		return errors.New("migrate: STORE_DRIVER is not postgres")
	}

	pre, post, err := migrations.Up(l.storage.DB)
	if err != nil {
		return err
	}
	l.logger.WithField("preMigrationVersion", pre).
		WithField("postMigrationVersion", post).
		Info("Migration status")
	return nil
}
