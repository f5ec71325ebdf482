package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

var dec100 = decimal.NewFromInt(100)

// Alert is an immutable record of a detected volume spike.
type Alert struct {
	Symbol         string          `json:"symbol"`
	CurrentVolume  decimal.Decimal `json:"current_volume"`
	AverageVolume  decimal.Decimal `json:"avg_volume"`
	PctIncrease    decimal.Decimal `json:"volume_change_pct"`
	LastPrice      decimal.Decimal `json:"last_price"`
	PriceChange24h decimal.Decimal `json:"price_change_24h"`
	DetectedAt     time.Time       `json:"timestamp"`
}

// Evaluation carries everything the detector needs for one symbol: the fresh
// sample, the baseline computed from strictly-prior history, and ticker
// context copied into the alert verbatim.
type Evaluation struct {
	Symbol           string
	CurrentVolume    decimal.Decimal
	Baseline         decimal.Decimal
	BaselineOK       bool
	FirstObservation bool
	LastPrice        decimal.Decimal
	PriceChange24h   decimal.Decimal
	Now              time.Time
}

// Detector applies the spike threshold to per-symbol evaluations.
type Detector struct {
	thresholdPct decimal.Decimal
}

// NewDetector constructs a detector for the given percentage threshold.
func NewDetector(thresholdPct decimal.Decimal) *Detector {
	return &Detector{thresholdPct: thresholdPct}
}

// Evaluate returns an alert when the current volume exceeds the baseline by
// at least the threshold, or nil otherwise.
//
// A symbol never alerts on its first observation, without a baseline, or
// with a baseline <= 0: one prior sample with positive average volume is the
// minimum signal required.
func (d *Detector) Evaluate(in Evaluation) *Alert {
	if in.FirstObservation || !in.BaselineOK || !in.Baseline.IsPositive() {
		return nil
	}

	pctIncrease := in.CurrentVolume.Sub(in.Baseline).Div(in.Baseline).Mul(dec100)
	if pctIncrease.LessThan(d.thresholdPct) {
		return nil
	}

	return &Alert{
		Symbol:         in.Symbol,
		CurrentVolume:  in.CurrentVolume,
		AverageVolume:  in.Baseline,
		PctIncrease:    pctIncrease,
		LastPrice:      in.LastPrice,
		PriceChange24h: in.PriceChange24h,
		DetectedAt:     in.Now,
	}
}
