package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func baseEvaluation() Evaluation {
	return Evaluation{
		Symbol:         "BTCUSDT",
		CurrentVolume:  decimal.NewFromInt(1300),
		Baseline:       decimal.NewFromInt(1000),
		BaselineOK:     true,
		LastPrice:      decimal.NewFromFloat(65000.5),
		PriceChange24h: decimal.NewFromFloat(2.4),
		Now:            time.Now().UTC(),
	}
}

func TestDetectorSuppressesFirstObservation(t *testing.T) {
	detector := NewDetector(decimal.NewFromFloat(30.0))

	in := baseEvaluation()
	in.FirstObservation = true
	in.CurrentVolume = decimal.NewFromInt(1_000_000_000)

	if alert := detector.Evaluate(in); alert != nil {
		t.Fatalf("first observation must never alert, got %+v", alert)
	}
}

func TestDetectorSuppressesMissingBaseline(t *testing.T) {
	detector := NewDetector(decimal.NewFromFloat(30.0))

	in := baseEvaluation()
	in.BaselineOK = false
	in.Baseline = decimal.Decimal{}

	if alert := detector.Evaluate(in); alert != nil {
		t.Fatal("undefined baseline must not alert")
	}
}

func TestDetectorSuppressesZeroBaseline(t *testing.T) {
	detector := NewDetector(decimal.NewFromFloat(30.0))

	in := baseEvaluation()
	in.Baseline = decimal.Zero
	in.CurrentVolume = decimal.NewFromInt(999999)

	if alert := detector.Evaluate(in); alert != nil {
		t.Fatal("zero baseline must not alert regardless of current volume")
	}
}

func TestDetectorThresholdBoundaryInclusive(t *testing.T) {
	detector := NewDetector(decimal.NewFromFloat(30.0))

	// current = baseline * 1.30 lands exactly on the threshold.
	in := baseEvaluation()
	in.CurrentVolume = decimal.NewFromInt(1300)

	alert := detector.Evaluate(in)
	if alert == nil {
		t.Fatal("increase equal to the threshold must trigger")
	}
	if !alert.PctIncrease.Equal(decimal.NewFromFloat(30.0)) {
		t.Fatalf("expected pct increase 30, got %s", alert.PctIncrease)
	}
	if alert.Symbol != "BTCUSDT" {
		t.Fatalf("unexpected symbol %q", alert.Symbol)
	}
	if !alert.AverageVolume.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("alert must carry the baseline, got %s", alert.AverageVolume)
	}
	if alert.DetectedAt != in.Now {
		t.Fatal("DetectedAt must be the evaluation instant")
	}
}

func TestDetectorJustBelowThreshold(t *testing.T) {
	detector := NewDetector(decimal.NewFromFloat(30.0))

	in := baseEvaluation()
	in.CurrentVolume = decimal.RequireFromString("1299.999")

	if alert := detector.Evaluate(in); alert != nil {
		t.Fatalf("increase below the threshold must not trigger, got %s", alert.PctIncrease)
	}
}

func TestDetectorVolumeDropNeverTriggers(t *testing.T) {
	detector := NewDetector(decimal.NewFromFloat(30.0))

	in := baseEvaluation()
	in.CurrentVolume = decimal.NewFromInt(200)

	if alert := detector.Evaluate(in); alert != nil {
		t.Fatal("falling volume must not trigger a spike alert")
	}
}
