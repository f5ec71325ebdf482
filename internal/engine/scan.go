package engine

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// TickerSnapshot is one symbol's market reading handed to a scan cycle.
type TickerSnapshot struct {
	Symbol         string
	Volume24h      decimal.Decimal
	LastPrice      decimal.Decimal
	PriceChange24h decimal.Decimal
}

// CycleParams are the configuration values a single cycle runs under. They
// are captured once at cycle start; config changes never apply mid-cycle.
type CycleParams struct {
	ThresholdPct    decimal.Decimal
	LookbackWindow  time.Duration
	RetentionFactor float64
	MinVolume       decimal.Decimal
	// SuppressAlerts records samples without evaluating them. Used for the
	// very first cycle after starting with no persisted history, while
	// baselines are still being built.
	SuppressAlerts bool
}

// RetentionWindow is the lookback window stretched by the retention factor,
// keeping a margin of samples beyond the comparison window before pruning.
func (p CycleParams) RetentionWindow() time.Duration {
	factor := p.RetentionFactor
	if factor < 1.0 {
		factor = 1.0
	}
	return time.Duration(float64(p.LookbackWindow) * factor)
}

// Scanner runs scan cycles against a history store. Cycles are strictly
// sequential; the caller must never run two concurrently.
type Scanner struct {
	store  *HistoryStore
	logger zerolog.Logger
}

// NewScanner wires a scanner to its store.
func NewScanner(store *HistoryStore, logger zerolog.Logger) *Scanner {
	return &Scanner{
		store:  store,
		logger: logger.With().Str("component", "engine").Logger(),
	}
}

// Store exposes the underlying history store for status readers.
func (s *Scanner) Store() *HistoryStore {
	return s.store
}

// RunCycle processes one full ticker snapshot: for every entry it captures
// the pre-update baseline and first-observation flag, records the fresh
// sample, then evaluates the spike rule. The current sample never feeds its
// own baseline. Pruning happens once, after all symbols are processed.
func (s *Scanner) RunCycle(snapshot []TickerSnapshot, params CycleParams, now time.Time) []Alert {
	detector := NewDetector(params.ThresholdPct)
	alerts := make([]Alert, 0)

	skipped := 0
	for _, t := range snapshot {
		if t.Symbol == "" || t.Volume24h.IsNegative() {
			skipped++
			continue
		}
		// Negligible volume would only pollute history with zero baselines.
		if t.Volume24h.LessThan(params.MinVolume) {
			continue
		}

		firstObservation := s.store.IsFirstObservation(t.Symbol)
		prior := s.store.HistoryWithin(t.Symbol, params.LookbackWindow, now)
		baseline, baselineOK := AverageVolume(prior)

		s.store.Record(t.Symbol, Sample{Timestamp: now, Volume: t.Volume24h})

		if params.SuppressAlerts {
			continue
		}

		alert := detector.Evaluate(Evaluation{
			Symbol:           t.Symbol,
			CurrentVolume:    t.Volume24h,
			Baseline:         baseline,
			BaselineOK:       baselineOK,
			FirstObservation: firstObservation,
			LastPrice:        t.LastPrice,
			PriceChange24h:   t.PriceChange24h,
			Now:              now,
		})
		if alert != nil {
			alerts = append(alerts, *alert)
		}
	}

	if skipped > 0 {
		s.logger.Warn().Int("skipped", skipped).Msg("dropped malformed ticker entries")
	}

	s.store.Prune(params.RetentionWindow(), now)

	return alerts
}
