package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"bybit-volume-scanner/internal/alerting"
	"bybit-volume-scanner/internal/engine"
)

// Simulate runs a synthetic detection cycle: the baseline volumes are
// recorded as prior history, the current volume is evaluated against them,
// and any alert is rendered through the console sink. Nothing is persisted.
func (a *App) Simulate(ctx context.Context, opts SimulateOptions) error {
	if opts.Symbol == "" {
		return errors.New("--symbol is required")
	}
	if len(opts.Baseline) == 0 {
		return errors.New("at least one --baseline volume is required")
	}
	if opts.Current <= 0 {
		return errors.New("--current must be greater than zero")
	}

	now := time.Now().UTC()
	store := engine.NewHistoryStore()

	// Spread the baseline samples backwards through the lookback window so
	// they all land inside it.
	window := a.Config.Scanner.LookbackWindow()
	step := window / time.Duration(len(opts.Baseline)+1)
	for i, volume := range opts.Baseline {
		store.Record(opts.Symbol, engine.Sample{
			Timestamp: now.Add(-window + step*time.Duration(i+1)),
			Volume:    decimal.NewFromFloat(volume),
		})
	}

	scanner := engine.NewScanner(store, a.Logger)
	alerts := scanner.RunCycle([]engine.TickerSnapshot{
		{
			Symbol:    opts.Symbol,
			Volume24h: decimal.NewFromFloat(opts.Current),
			LastPrice: decimal.NewFromInt(1),
		},
	}, engine.CycleParams{
		ThresholdPct:    decimal.NewFromFloat(a.Config.Scanner.ThresholdPct),
		LookbackWindow:  window,
		RetentionFactor: a.Config.Scanner.RetentionFactor,
		MinVolume:       decimal.NewFromFloat(a.Config.Scanner.MinVolume),
	}, now)

	if len(alerts) == 0 {
		fmt.Fprintf(os.Stdout, "no spike: %s at %g did not exceed the %.1f%% threshold\n",
			opts.Symbol, opts.Current, a.Config.Scanner.ThresholdPct)
		return nil
	}

	return alerting.NewConsoleNotifier(nil).Notify(ctx, alerts)
}
