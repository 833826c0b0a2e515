package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Lapse expired credit across all accounts once and exit",
	RunE:  runSweep,
}

func init() {
	sweepCmd.Flags().String("as-of", "", "RFC3339 cutoff, defaults to now")
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	l, err := openLedger()
	if err != nil {
		return err
	}
	defer l.close()

	asOf := l.clock.Now()
	if raw, _ := cmd.Flags().GetString("as-of"); raw != "" {
		asOf, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return fmt.Errorf("--as-of: %w", err)
		}
	}

	lapsed, err := l.sweeper.Sweep(cmd.Context(), asOf)
	l.logger.WithField("asOf", asOf.UTC().Format(time.RFC3339)).
		WithField("lapsed", lapsed).
		Info("Sweep complete")
	return err
}
