package engine

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func testParams() CycleParams {
	return CycleParams{
		ThresholdPct:    decimal.NewFromFloat(30.0),
		LookbackWindow:  24 * time.Hour,
		RetentionFactor: 1.2,
		MinVolume:       decimal.NewFromFloat(0.01),
	}
}

func newTestScanner() *Scanner {
	return NewScanner(NewHistoryStore(), zerolog.Nop())
}

func tick(symbol string, volume float64) TickerSnapshot {
	return TickerSnapshot{
		Symbol:         symbol,
		Volume24h:      decimal.NewFromFloat(volume),
		LastPrice:      decimal.NewFromFloat(100),
		PriceChange24h: decimal.NewFromFloat(1.5),
	}
}

func TestRunCycleFirstObservationCollectsWithoutAlert(t *testing.T) {
	scanner := newTestScanner()
	now := time.Now().UTC()

	alerts := scanner.RunCycle([]TickerSnapshot{tick("BTCUSDT", 1000)}, testParams(), now)

	if len(alerts) != 0 {
		t.Fatalf("first cycle must raise no alerts, got %d", len(alerts))
	}
	history, ok := scanner.Store().History("BTCUSDT")
	if !ok || len(history) != 1 {
		t.Fatalf("expected exactly one stored sample, got %d (ok=%v)", len(history), ok)
	}
}

func TestRunCycleTriggersAtExactThreshold(t *testing.T) {
	scanner := newTestScanner()
	t0 := time.Now().UTC().Add(-time.Hour)

	scanner.RunCycle([]TickerSnapshot{tick("BTCUSDT", 1000)}, testParams(), t0)
	alerts := scanner.RunCycle([]TickerSnapshot{tick("BTCUSDT", 1300)}, testParams(), t0.Add(time.Hour))

	if len(alerts) != 1 {
		t.Fatalf("expected one alert, got %d", len(alerts))
	}
	alert := alerts[0]
	if !alert.PctIncrease.Equal(decimal.NewFromFloat(30.0)) {
		t.Fatalf("expected pct increase 30, got %s", alert.PctIncrease)
	}
	if !alert.AverageVolume.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("baseline should be the prior sample, got %s", alert.AverageVolume)
	}
}

func TestRunCycleBaselineExcludesCurrentSample(t *testing.T) {
	scanner := newTestScanner()
	now := time.Now().UTC()

	// Two prior readings of 800 and 1200 average to 1000; 1250 is a 25%
	// increase, which stays under a 30% threshold. Were the current sample
	// included in its own baseline the percentage would differ.
	scanner.RunCycle([]TickerSnapshot{tick("BTCUSDT", 800)}, testParams(), now.Add(-2*time.Hour))
	scanner.RunCycle([]TickerSnapshot{tick("BTCUSDT", 1200)}, testParams(), now.Add(-time.Hour))
	alerts := scanner.RunCycle([]TickerSnapshot{tick("BTCUSDT", 1250)}, testParams(), now)

	if len(alerts) != 0 {
		t.Fatalf("25%% increase must not trigger at a 30%% threshold, got %+v", alerts)
	}
}

func TestRunCycleZeroBaselineNeverTriggers(t *testing.T) {
	scanner := newTestScanner()
	now := time.Now().UTC()

	// A degenerate zero-volume reading that slipped past the upstream filter.
	scanner.Store().Record("JUNKUSDT", Sample{Timestamp: now.Add(-time.Hour), Volume: decimal.Zero})
	alerts := scanner.RunCycle([]TickerSnapshot{tick("JUNKUSDT", 5000)}, testParams(), now)

	if len(alerts) != 0 {
		t.Fatal("zero baseline must be suppressed defensively")
	}
}

func TestRunCycleSkipsNegligibleVolume(t *testing.T) {
	scanner := newTestScanner()
	now := time.Now().UTC()

	scanner.RunCycle([]TickerSnapshot{tick("DUSTUSDT", 0.001)}, testParams(), now)

	if scanner.Store().SymbolCount() != 0 {
		t.Fatal("negligible volume must never reach the store")
	}
}

func TestRunCycleSkipsMalformedEntries(t *testing.T) {
	scanner := newTestScanner()
	now := time.Now().UTC()

	snapshot := []TickerSnapshot{
		{Symbol: "", Volume24h: decimal.NewFromInt(100)},
		{Symbol: "BADUSDT", Volume24h: decimal.NewFromInt(-10)},
		tick("GOODUSDT", 1000),
	}
	alerts := scanner.RunCycle(snapshot, testParams(), now)

	if len(alerts) != 0 {
		t.Fatalf("expected no alerts, got %d", len(alerts))
	}
	if scanner.Store().SymbolCount() != 1 {
		t.Fatalf("only the well-formed entry should be recorded, got %d symbols", scanner.Store().SymbolCount())
	}
}

func TestRunCycleSuppressAlertsStillRecords(t *testing.T) {
	scanner := newTestScanner()
	now := time.Now().UTC()

	scanner.Store().Record("BTCUSDT", Sample{Timestamp: now.Add(-time.Hour), Volume: decimal.NewFromInt(100)})

	params := testParams()
	params.SuppressAlerts = true
	alerts := scanner.RunCycle([]TickerSnapshot{tick("BTCUSDT", 100000)}, params, now)

	if len(alerts) != 0 {
		t.Fatal("suppressed cycle must not alert")
	}
	history, _ := scanner.Store().History("BTCUSDT")
	if len(history) != 2 {
		t.Fatalf("suppressed cycle must still record samples, got %d", len(history))
	}
}

func TestRunCyclePrunesAfterDetection(t *testing.T) {
	scanner := newTestScanner()
	now := time.Now().UTC()
	params := testParams()

	// One sample just inside the lookback window and one far outside it. The
	// in-window sample must still feed the baseline for this cycle even
	// though pruning runs at the end.
	scanner.Store().Record("BTCUSDT", Sample{Timestamp: now.Add(-23 * time.Hour), Volume: decimal.NewFromInt(1000)})
	scanner.Store().Record("BTCUSDT", Sample{Timestamp: now.Add(-40 * time.Hour), Volume: decimal.NewFromInt(1)})

	alerts := scanner.RunCycle([]TickerSnapshot{tick("BTCUSDT", 1300)}, params, now)
	if len(alerts) != 1 {
		t.Fatalf("expected the in-window baseline to trigger, got %d alerts", len(alerts))
	}

	history, _ := scanner.Store().History("BTCUSDT")
	cutoff := now.Add(-params.RetentionWindow())
	for _, s := range history {
		if s.Timestamp.Before(cutoff) {
			t.Fatalf("sample at %s should have been pruned", s.Timestamp)
		}
	}
}

func TestRetentionWindowMargin(t *testing.T) {
	params := testParams()
	if got, want := params.RetentionWindow(), time.Duration(float64(24*time.Hour)*1.2); got != want {
		t.Fatalf("expected retention %s, got %s", want, got)
	}

	params.RetentionFactor = 0.5
	if params.RetentionWindow() < params.LookbackWindow {
		t.Fatal("retention must never shrink below the lookback window")
	}
}
