package config

import (
	"strings"
	"testing"
	"time"
)

func validScanner() ScannerConfig {
	return ScannerConfig{
		Category:        "spot",
		LookbackHours:   24,
		ThresholdPct:    30.0,
		Interval:        5 * time.Minute,
		MinVolume:       0.01,
		RetentionFactor: 1.2,
	}
}

func TestScannerConfigValid(t *testing.T) {
	if err := validScanner().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestScannerConfigRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*ScannerConfig)
		want   string
	}{
		{"unknown category", func(c *ScannerConfig) { c.Category = "options" }, "category"},
		{"zero lookback", func(c *ScannerConfig) { c.LookbackHours = 0 }, "lookback_hours"},
		{"negative threshold", func(c *ScannerConfig) { c.ThresholdPct = -1 }, "threshold_pct"},
		{"zero threshold", func(c *ScannerConfig) { c.ThresholdPct = 0 }, "threshold_pct"},
		{"zero interval", func(c *ScannerConfig) { c.Interval = 0 }, "interval"},
		{"negative min volume", func(c *ScannerConfig) { c.MinVolume = -0.5 }, "min_volume"},
		{"retention under one", func(c *ScannerConfig) { c.RetentionFactor = 0.9 }, "retention_factor"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validScanner()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q should mention %q", err, tc.want)
			}
		})
	}
}

func TestLookbackWindow(t *testing.T) {
	cfg := validScanner()
	if got := cfg.LookbackWindow(); got != 24*time.Hour {
		t.Fatalf("expected 24h window, got %s", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("loading defaults should succeed: %v", err)
	}
	if cfg.Scanner.Category != "spot" {
		t.Fatalf("unexpected default category %q", cfg.Scanner.Category)
	}
	if cfg.Scanner.Interval != 5*time.Minute {
		t.Fatalf("unexpected default interval %s", cfg.Scanner.Interval)
	}
	if cfg.Scanner.RetentionFactor != 1.2 {
		t.Fatalf("unexpected default retention factor %v", cfg.Scanner.RetentionFactor)
	}
	if cfg.Storage.DataFile != "volume_data.json" {
		t.Fatalf("unexpected default data file %q", cfg.Storage.DataFile)
	}
}
