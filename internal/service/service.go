package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"bybit-volume-scanner/internal/alerting"
	"bybit-volume-scanner/internal/config"
	"bybit-volume-scanner/internal/engine"
	"bybit-volume-scanner/internal/market"
	"bybit-volume-scanner/internal/scheduler"
	"bybit-volume-scanner/internal/storage"
)

// alertLogCapacity bounds the in-memory alert log served to the dashboard.
const alertLogCapacity = 50

// HistoryPersister is the durable load/save contract for volume histories.
type HistoryPersister interface {
	Load(ctx context.Context) (map[string][]storage.VolumeRecord, error)
	Save(ctx context.Context, histories map[string][]storage.VolumeRecord) error
	Reset(ctx context.Context) error
}

// Deps aggregates the scanner's collaborators. Provider and Persister are
// required; everything else is optional.
type Deps struct {
	Provider   market.TickerProvider
	Persister  HistoryPersister
	AlertStore storage.AlertStore
	Archive    storage.HistoryArchive
	Locker     storage.AdvisoryLocker
	LockKey    int64
	Notifiers  []alerting.Notifier
}

// Status is the scanner state reported to the dashboard.
type Status struct {
	Running        bool       `json:"is_running"`
	LastScanTime   *time.Time `json:"last_scan_time,omitempty"`
	TrackedSymbols int        `json:"total_pairs"`
	AlertCount     int        `json:"alerts_count"`
	FirstRun       bool       `json:"first_run"`
}

// SymbolSummary is one tracked symbol's current standing.
type SymbolSummary struct {
	Symbol        string           `json:"symbol"`
	CurrentVolume decimal.Decimal  `json:"current_volume"`
	AvgVolume     *decimal.Decimal `json:"avg_volume,omitempty"`
	LastUpdate    time.Time        `json:"last_update"`
	DataPoints    int              `json:"data_points"`
}

// Scanner orchestrates the scan loop: fetch a ticker snapshot, run the
// detection cycle, persist, and fan alerts out to the sinks. Exactly one
// cycle runs at a time; control actions land between cycles.
type Scanner struct {
	deps   Deps
	engine *engine.Scanner
	logger zerolog.Logger

	mtx      sync.Mutex
	active   config.ScannerConfig
	pending  *config.ScannerConfig
	running  bool
	firstRun bool
	lastScan *time.Time
	alerts   []engine.Alert
}

// NewScanner constructs the scanning service around a fresh history store.
func NewScanner(cfg config.ScannerConfig, deps Deps, logger zerolog.Logger) *Scanner {
	log := logger.With().Str("component", "service").Logger()
	return &Scanner{
		deps:     deps,
		engine:   engine.NewScanner(engine.NewHistoryStore(), log),
		logger:   log,
		active:   cfg,
		running:  true,
		firstRun: true,
	}
}

// LoadHistory restores persisted volume histories. An empty (or absent)
// data file keeps first-run behaviour: the first cycle only builds baselines.
func (s *Scanner) LoadHistory(ctx context.Context) error {
	histories, err := s.deps.Persister.Load(ctx)
	if err != nil {
		return err
	}
	s.engine.Store().Restore(storage.SnapshotFromRecords(histories))

	s.mtx.Lock()
	s.firstRun = s.engine.Store().SymbolCount() == 0
	s.mtx.Unlock()

	s.logger.Info().Int("symbols", s.engine.Store().SymbolCount()).Msg("volume history loaded")
	return nil
}

// Run drives the scan loop until ctx is cancelled. The interval is
// re-evaluated between cycles so a reconfiguration takes effect at the next
// boundary.
func (s *Scanner) Run(ctx context.Context) error {
	sched := scheduler.New(scheduler.Options{
		IntervalSource: s.currentInterval,
	}, s.logger)
	return sched.Run(ctx, s.ProcessCycle)
}

func (s *Scanner) currentInterval() time.Duration {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.active.Interval
}

// beginCycle swaps in any queued config and captures an immutable snapshot
// of the state this cycle runs under.
func (s *Scanner) beginCycle() (cfg config.ScannerConfig, firstRun, running bool) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.pending != nil {
		s.active = *s.pending
		s.pending = nil
		s.logger.Info().
			Str("category", s.active.Category).
			Float64("threshold_pct", s.active.ThresholdPct).
			Msg("applied queued configuration")
	}
	return s.active, s.firstRun, s.running
}

// ProcessCycle executes a single scan cycle. All failures are cycle-scoped:
// they are logged and the loop simply waits for the next interval.
func (s *Scanner) ProcessCycle(ctx context.Context, now time.Time) error {
	cfg, firstRun, running := s.beginCycle()
	if !running {
		s.logger.Debug().Msg("scanner stopped; skipping cycle")
		return nil
	}

	if s.deps.Locker != nil && s.deps.LockKey != 0 {
		unlock, acquired, err := s.deps.Locker.TryAdvisoryLock(ctx, s.deps.LockKey)
		if err != nil {
			s.logger.Warn().Err(err).Msg("advisory lock unavailable; skipping cycle")
			return nil
		}
		if !acquired {
			s.logger.Debug().Msg("advisory lock held elsewhere; skipping cycle")
			return nil
		}
		defer unlock()
	}

	category, err := market.ParseCategory(cfg.Category)
	if err != nil {
		s.logger.Error().Err(err).Msg("active config has invalid category")
		return nil
	}

	tickers, err := s.deps.Provider.FetchTickers(ctx, category)
	if err != nil {
		// Collaborator failure degrades the cycle: zero alerts, no mutation.
		s.logger.Warn().Err(err).Msg("ticker fetch failed; cycle skipped")
		return nil
	}

	snapshot := make([]engine.TickerSnapshot, 0, len(tickers))
	for _, t := range tickers {
		snapshot = append(snapshot, engine.TickerSnapshot{
			Symbol:         t.Symbol,
			Volume24h:      t.Volume24h,
			LastPrice:      t.LastPrice,
			PriceChange24h: t.PriceChange24h,
		})
	}

	if firstRun {
		s.logger.Info().Int("pairs", len(snapshot)).Msg("first run: building baseline data, no alerts this cycle")
	}

	alerts := s.engine.RunCycle(snapshot, engine.CycleParams{
		ThresholdPct:    decimal.NewFromFloat(cfg.ThresholdPct),
		LookbackWindow:  cfg.LookbackWindow(),
		RetentionFactor: cfg.RetentionFactor,
		MinVolume:       decimal.NewFromFloat(cfg.MinVolume),
		SuppressAlerts:  firstRun,
	}, now)

	s.finishCycle(now, alerts)

	s.persist(ctx)
	s.audit(ctx, alerts)
	s.dispatch(ctx, alerts)

	s.logger.Info().
		Int("pairs", len(snapshot)).
		Int("alerts", len(alerts)).
		Time("cycle", now).
		Msg("scan cycle complete")
	return nil
}

func (s *Scanner) finishCycle(now time.Time, alerts []engine.Alert) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	ts := now
	s.lastScan = &ts
	if s.firstRun {
		s.firstRun = false
	}

	if len(alerts) == 0 {
		return
	}
	s.alerts = append(append([]engine.Alert{}, alerts...), s.alerts...)
	if len(s.alerts) > alertLogCapacity {
		s.alerts = s.alerts[:alertLogCapacity]
	}
}

// persist writes the in-memory snapshot out. A failed write never rolls the
// store back; the in-memory view stays authoritative and the next successful
// save carries everything accumulated since.
func (s *Scanner) persist(ctx context.Context) {
	records := storage.SnapshotToRecords(s.engine.Store().Snapshot())

	if err := s.deps.Persister.Save(ctx, records); err != nil {
		s.logger.Warn().Err(err).Msg("could not save volume history")
	}

	if s.deps.Archive != nil {
		if err := s.deps.Archive.ReplaceHistories(ctx, records); err != nil {
			s.logger.Warn().Err(err).Msg("could not mirror volume history to database")
		}
	}
}

func (s *Scanner) audit(ctx context.Context, alerts []engine.Alert) {
	if s.deps.AlertStore == nil {
		return
	}
	for _, alert := range alerts {
		if _, err := s.deps.AlertStore.InsertAlert(ctx, storage.AlertRecordFromEngine(alert)); err != nil {
			s.logger.Warn().Err(err).Str("symbol", alert.Symbol).Msg("could not persist alert record")
		}
	}
}

func (s *Scanner) dispatch(ctx context.Context, alerts []engine.Alert) {
	if len(alerts) == 0 {
		return
	}
	for _, notifier := range s.deps.Notifiers {
		if err := notifier.Notify(ctx, alerts); err != nil {
			s.logger.Warn().Err(err).Msg("alert sink failed")
		}
	}
}

// ApplyConfig validates and queues a new configuration. It takes effect at
// the next cycle boundary, never mid-cycle. Invalid configs are rejected and
// the previously active config remains in effect.
func (s *Scanner) ApplyConfig(cfg config.ScannerConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.pending = &cfg
	return nil
}

// Config returns the most recently accepted configuration: the queued one if
// a change is pending, otherwise the active one.
func (s *Scanner) Config() config.ScannerConfig {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.pending != nil {
		return *s.pending
	}
	return s.active
}

// Start resumes cycle execution from the next interval.
func (s *Scanner) Start() {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.running = true
}

// Stop pauses scanning. It takes effect between cycles; an in-flight cycle
// always completes.
func (s *Scanner) Stop() {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.running = false
}

// Running reports whether cycles are currently being executed.
func (s *Scanner) Running() bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.running
}

// Reset discards all stored history and the alert log, restoring first-run
// behaviour, and truncates persisted state.
func (s *Scanner) Reset(ctx context.Context) error {
	s.engine.Store().Reset()

	s.mtx.Lock()
	s.alerts = nil
	s.firstRun = true
	s.mtx.Unlock()

	if err := s.deps.Persister.Reset(ctx); err != nil {
		return err
	}
	if s.deps.Archive != nil {
		if err := s.deps.Archive.ReplaceHistories(ctx, map[string][]storage.VolumeRecord{}); err != nil {
			s.logger.Warn().Err(err).Msg("could not reset database history mirror")
		}
	}

	s.logger.Info().Msg("volume history reset")
	return nil
}

// Status reports current scanner state for the dashboard.
func (s *Scanner) Status() Status {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	var last *time.Time
	if s.lastScan != nil {
		ts := *s.lastScan
		last = &ts
	}
	return Status{
		Running:        s.running,
		LastScanTime:   last,
		TrackedSymbols: s.engine.Store().SymbolCount(),
		AlertCount:     len(s.alerts),
		FirstRun:       s.firstRun,
	}
}

// RecentAlerts returns the alert log, newest first.
func (s *Scanner) RecentAlerts() []engine.Alert {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	out := make([]engine.Alert, len(s.alerts))
	copy(out, s.alerts)
	return out
}

// HistoryFor returns a symbol's stored samples.
func (s *Scanner) HistoryFor(symbol string) ([]engine.Sample, bool) {
	return s.engine.Store().History(symbol)
}

// AllSymbols summarises every tracked symbol, sorted by current volume
// descending. The average excludes the latest sample, mirroring the
// strictly-prior baseline the detector uses.
func (s *Scanner) AllSymbols() []SymbolSummary {
	snapshot := s.engine.Store().Snapshot()

	summaries := make([]SymbolSummary, 0, len(snapshot))
	for symbol, samples := range snapshot {
		if len(samples) == 0 {
			continue
		}
		latest := samples[len(samples)-1]
		summary := SymbolSummary{
			Symbol:        symbol,
			CurrentVolume: latest.Volume,
			LastUpdate:    latest.Timestamp,
			DataPoints:    len(samples),
		}
		if avg, ok := engine.AverageVolume(samples[:len(samples)-1]); ok {
			summary.AvgVolume = &avg
		}
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CurrentVolume.GreaterThan(summaries[j].CurrentVolume)
	})
	return summaries
}
