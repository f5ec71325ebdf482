package cli

import (
	"github.com/spf13/cobra"

	"bybit-volume-scanner/internal/app"
)

var (
	simulateSymbol   string
	simulateBaseline []float64
	simulateCurrent  float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a synthetic detection cycle against given volumes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Simulate(cmd.Context(), app.SimulateOptions{
			Symbol:   simulateSymbol,
			Baseline: simulateBaseline,
			Current:  simulateCurrent,
		})
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateSymbol, "symbol", "BTCUSDT", "Symbol label for the synthetic cycle")
	simulateCmd.Flags().Float64SliceVar(&simulateBaseline, "baseline", nil, "Prior 24h volumes forming the baseline")
	simulateCmd.Flags().Float64Var(&simulateCurrent, "current", 0, "Current 24h volume to evaluate")
}
