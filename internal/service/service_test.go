package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"bybit-volume-scanner/internal/config"
	"bybit-volume-scanner/internal/engine"
	"bybit-volume-scanner/internal/market"
	"bybit-volume-scanner/internal/storage"
)

type fakeProvider struct {
	tickers []market.Ticker
	err     error
	calls   int
}

func (f *fakeProvider) FetchTickers(ctx context.Context, category market.Category) ([]market.Ticker, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.tickers, nil
}

type memPersister struct {
	saved   map[string][]storage.VolumeRecord
	saves   int
	saveErr error
	loadErr error
}

func (m *memPersister) Load(ctx context.Context) (map[string][]storage.VolumeRecord, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.saved == nil {
		return map[string][]storage.VolumeRecord{}, nil
	}
	return m.saved, nil
}

func (m *memPersister) Save(ctx context.Context, histories map[string][]storage.VolumeRecord) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = histories
	return nil
}

func (m *memPersister) Reset(ctx context.Context) error {
	m.saved = map[string][]storage.VolumeRecord{}
	return nil
}

type recordingNotifier struct {
	batches [][]engine.Alert
}

func (r *recordingNotifier) Notify(ctx context.Context, alerts []engine.Alert) error {
	r.batches = append(r.batches, alerts)
	return nil
}

func scannerConfig() config.ScannerConfig {
	return config.ScannerConfig{
		Category:        "spot",
		LookbackHours:   24,
		ThresholdPct:    30.0,
		Interval:        5 * time.Minute,
		MinVolume:       0.01,
		RetentionFactor: 1.2,
	}
}

func ticker(symbol string, volume float64) market.Ticker {
	return market.Ticker{
		Symbol:         symbol,
		Volume24h:      decimal.NewFromFloat(volume),
		LastPrice:      decimal.NewFromFloat(100),
		PriceChange24h: decimal.NewFromFloat(1.5),
	}
}

func newTestScanner(provider *fakeProvider, persister *memPersister, notifiers ...*recordingNotifier) *Scanner {
	deps := Deps{Provider: provider, Persister: persister}
	for _, n := range notifiers {
		deps.Notifiers = append(deps.Notifiers, n)
	}
	return NewScanner(scannerConfig(), deps, zerolog.Nop())
}

func TestFirstCycleBuildsBaselineWithoutAlerts(t *testing.T) {
	provider := &fakeProvider{tickers: []market.Ticker{ticker("BTCUSDT", 1000)}}
	persister := &memPersister{}
	sink := &recordingNotifier{}
	svc := newTestScanner(provider, persister, sink)
	ctx := context.Background()

	if err := svc.LoadHistory(ctx); err != nil {
		t.Fatal(err)
	}
	if !svc.Status().FirstRun {
		t.Fatal("empty load must leave first-run active")
	}

	if err := svc.ProcessCycle(ctx, time.Now().UTC()); err != nil {
		t.Fatal(err)
	}

	status := svc.Status()
	if status.FirstRun {
		t.Fatal("first-run must clear after the first cycle")
	}
	if status.TrackedSymbols != 1 {
		t.Fatalf("expected 1 tracked symbol, got %d", status.TrackedSymbols)
	}
	if status.AlertCount != 0 || len(sink.batches) != 0 {
		t.Fatal("first cycle must not alert")
	}
	if persister.saves != 1 {
		t.Fatalf("history should be persisted after the cycle, got %d saves", persister.saves)
	}
}

func TestSpikeAcrossCyclesDispatchesAlert(t *testing.T) {
	provider := &fakeProvider{tickers: []market.Ticker{ticker("BTCUSDT", 1000)}}
	persister := &memPersister{
		// Pre-existing history suppresses the process-level first run.
		saved: map[string][]storage.VolumeRecord{
			"ETHUSDT": {{Timestamp: time.Now().UTC().Add(-time.Hour), Volume: 500}},
		},
	}
	sink := &recordingNotifier{}
	svc := newTestScanner(provider, persister, sink)
	ctx := context.Background()

	if err := svc.LoadHistory(ctx); err != nil {
		t.Fatal(err)
	}

	t0 := time.Now().UTC().Add(-time.Hour)
	if err := svc.ProcessCycle(ctx, t0); err != nil {
		t.Fatal(err)
	}

	provider.tickers = []market.Ticker{ticker("BTCUSDT", 1300)}
	if err := svc.ProcessCycle(ctx, t0.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	alerts := svc.RecentAlerts()
	if len(alerts) != 1 {
		t.Fatalf("expected one alert, got %d", len(alerts))
	}
	if !alerts[0].PctIncrease.Equal(decimal.NewFromFloat(30.0)) {
		t.Fatalf("expected 30%% increase, got %s", alerts[0].PctIncrease)
	}
	if len(sink.batches) != 1 || len(sink.batches[0]) != 1 {
		t.Fatalf("sink should receive the cycle's alerts, got %v", sink.batches)
	}
}

func TestProviderFailureLeavesStoreUntouched(t *testing.T) {
	provider := &fakeProvider{tickers: []market.Ticker{ticker("BTCUSDT", 1000)}}
	persister := &memPersister{}
	svc := newTestScanner(provider, persister)
	ctx := context.Background()

	if err := svc.ProcessCycle(ctx, time.Now().UTC()); err != nil {
		t.Fatal(err)
	}
	savesBefore := persister.saves

	provider.err = errors.New("connection refused")
	if err := svc.ProcessCycle(ctx, time.Now().UTC()); err != nil {
		t.Fatalf("collaborator failure must not surface as a cycle error: %v", err)
	}

	if svc.Status().TrackedSymbols != 1 {
		t.Fatal("failed cycle must not mutate the store")
	}
	if persister.saves != savesBefore {
		t.Fatal("failed cycle must not persist")
	}

	history, _ := svc.HistoryFor("BTCUSDT")
	if len(history) != 1 {
		t.Fatalf("history should still hold exactly the first sample, got %d", len(history))
	}
}

func TestApplyConfigTakesEffectNextCycle(t *testing.T) {
	provider := &fakeProvider{tickers: []market.Ticker{ticker("BTCUSDT", 1000)}}
	svc := newTestScanner(provider, &memPersister{})
	ctx := context.Background()

	next := scannerConfig()
	next.ThresholdPct = 10.0
	next.Interval = time.Minute
	if err := svc.ApplyConfig(next); err != nil {
		t.Fatal(err)
	}
	if got := svc.Config().ThresholdPct; got != 10.0 {
		t.Fatalf("queued config should be visible, got threshold %v", got)
	}

	// First cycle swaps in the pending config before scanning.
	if err := svc.ProcessCycle(ctx, time.Now().UTC().Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}

	provider.tickers = []market.Ticker{ticker("BTCUSDT", 1150)}
	if err := svc.ProcessCycle(ctx, time.Now().UTC()); err != nil {
		t.Fatal(err)
	}

	// +15% triggers only under the new 10% threshold.
	if len(svc.RecentAlerts()) != 1 {
		t.Fatal("new threshold should have been active for the second cycle")
	}
}

func TestApplyConfigRejectsInvalid(t *testing.T) {
	svc := newTestScanner(&fakeProvider{}, &memPersister{})

	bad := scannerConfig()
	bad.ThresholdPct = -5
	if err := svc.ApplyConfig(bad); err == nil {
		t.Fatal("invalid config must be rejected")
	}
	if got := svc.Config().ThresholdPct; got != 30.0 {
		t.Fatalf("previous config must stay active, got threshold %v", got)
	}
}

func TestStopSkipsCyclesUntilStart(t *testing.T) {
	provider := &fakeProvider{tickers: []market.Ticker{ticker("BTCUSDT", 1000)}}
	svc := newTestScanner(provider, &memPersister{})
	ctx := context.Background()

	svc.Stop()
	if err := svc.ProcessCycle(ctx, time.Now().UTC()); err != nil {
		t.Fatal(err)
	}
	if provider.calls != 0 {
		t.Fatal("stopped scanner must not fetch")
	}

	svc.Start()
	if err := svc.ProcessCycle(ctx, time.Now().UTC()); err != nil {
		t.Fatal(err)
	}
	if provider.calls != 1 {
		t.Fatal("started scanner should fetch again")
	}
}

func TestResetRestoresFirstRun(t *testing.T) {
	provider := &fakeProvider{tickers: []market.Ticker{ticker("BTCUSDT", 1000)}}
	persister := &memPersister{}
	svc := newTestScanner(provider, persister)
	ctx := context.Background()

	if err := svc.ProcessCycle(ctx, time.Now().UTC()); err != nil {
		t.Fatal(err)
	}
	if err := svc.Reset(ctx); err != nil {
		t.Fatal(err)
	}

	status := svc.Status()
	if status.TrackedSymbols != 0 || status.AlertCount != 0 || !status.FirstRun {
		t.Fatalf("reset should restore first-run state, got %+v", status)
	}
	if len(persister.saved) != 0 {
		t.Fatal("reset should truncate persisted state")
	}
}

func TestAlertLogBounded(t *testing.T) {
	provider := &fakeProvider{}
	svc := newTestScanner(provider, &memPersister{})
	ctx := context.Background()

	// Seed: one baseline cycle for many symbols, then one spiking cycle.
	base := make([]market.Ticker, 0, alertLogCapacity+10)
	spike := make([]market.Ticker, 0, alertLogCapacity+10)
	for i := 0; i < alertLogCapacity+10; i++ {
		symbol := "SYM" + string(rune('A'+i%26)) + string(rune('A'+i/26)) + "USDT"
		base = append(base, ticker(symbol, 1000))
		spike = append(spike, ticker(symbol, 2000))
	}

	// Disable process-level first-run by loading non-empty history.
	svc.deps.Persister.(*memPersister).saved = map[string][]storage.VolumeRecord{
		"SEEDUSDT": {{Timestamp: time.Now().UTC().Add(-time.Hour), Volume: 1}},
	}
	if err := svc.LoadHistory(ctx); err != nil {
		t.Fatal(err)
	}

	provider.tickers = base
	if err := svc.ProcessCycle(ctx, time.Now().UTC().Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}
	provider.tickers = spike
	if err := svc.ProcessCycle(ctx, time.Now().UTC()); err != nil {
		t.Fatal(err)
	}

	if got := len(svc.RecentAlerts()); got > alertLogCapacity {
		t.Fatalf("alert log must be capped at %d, got %d", alertLogCapacity, got)
	}
}

func TestAllSymbolsSortedByVolume(t *testing.T) {
	provider := &fakeProvider{tickers: []market.Ticker{
		ticker("SMALLUSDT", 10),
		ticker("BIGUSDT", 10000),
		ticker("MIDUSDT", 500),
	}}
	svc := newTestScanner(provider, &memPersister{})
	ctx := context.Background()

	if err := svc.ProcessCycle(ctx, time.Now().UTC()); err != nil {
		t.Fatal(err)
	}

	summaries := svc.AllSymbols()
	if len(summaries) != 3 {
		t.Fatalf("expected 3 summaries, got %d", len(summaries))
	}
	if summaries[0].Symbol != "BIGUSDT" || summaries[2].Symbol != "SMALLUSDT" {
		t.Fatalf("summaries not sorted by volume: %+v", summaries)
	}
	if summaries[0].AvgVolume != nil {
		t.Fatal("single-sample symbols have no prior average")
	}
}
