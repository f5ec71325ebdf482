package cli

import (
	"github.com/spf13/cobra"

	"bybit-volume-scanner/internal/app"
)

var (
	backfillSymbols []string
	backfillHours   int
	backfillDryRun  bool
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Seed volume history from hourly klines",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Backfill(cmd.Context(), app.BackfillOptions{
			Symbols: backfillSymbols,
			Hours:   backfillHours,
			DryRun:  backfillDryRun,
		})
	},
}

func init() {
	backfillCmd.Flags().StringSliceVar(&backfillSymbols, "symbol", nil, "Symbols to backfill (default: all tracked symbols)")
	backfillCmd.Flags().IntVar(&backfillHours, "hours", 0, "Hours of klines to fetch (defaults to scanner.lookback_hours)")
	backfillCmd.Flags().BoolVar(&backfillDryRun, "dry-run", false, "Fetch but do not write the data file")
}
