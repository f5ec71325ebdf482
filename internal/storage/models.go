package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"bybit-volume-scanner/internal/engine"
)

// VolumeRecord is the on-disk representation of one volume sample. The
// JSON shape (ISO-8601 timestamp string, numeric volume) is the stable
// persistence contract and stays independent of the engine's model.
type VolumeRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Volume    float64   `json:"volume"`
}

// legacyTimestampLayout matches data files written by earlier scanner
// versions, whose ISO-8601 timestamps carry no zone offset. They are read
// as UTC.
const legacyTimestampLayout = "2006-01-02T15:04:05.999999999"

// UnmarshalJSON accepts both RFC 3339 timestamps and the offset-less form
// found in pre-existing data files.
func (r *VolumeRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		Timestamp string  `json:"timestamp"`
		Volume    float64 `json:"volume"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	ts, err := time.Parse(time.RFC3339Nano, raw.Timestamp)
	if err != nil {
		ts, err = time.ParseInLocation(legacyTimestampLayout, raw.Timestamp, time.UTC)
		if err != nil {
			return fmt.Errorf("parse timestamp %q: %w", raw.Timestamp, err)
		}
	}

	r.Timestamp = ts
	r.Volume = raw.Volume
	return nil
}

// AlertRecord captures an emitted alert for auditing.
type AlertRecord struct {
	ID             int64
	Symbol         string
	CurrentVolume  decimal.Decimal
	AverageVolume  decimal.Decimal
	PctIncrease    decimal.Decimal
	LastPrice      decimal.Decimal
	PriceChange24h decimal.Decimal
	DetectedAt     time.Time
	CreatedAt      time.Time
}

// AlertRecordFromEngine converts a detector alert into its audit form.
func AlertRecordFromEngine(a engine.Alert) AlertRecord {
	return AlertRecord{
		Symbol:         a.Symbol,
		CurrentVolume:  a.CurrentVolume,
		AverageVolume:  a.AverageVolume,
		PctIncrease:    a.PctIncrease,
		LastPrice:      a.LastPrice,
		PriceChange24h: a.PriceChange24h,
		DetectedAt:     a.DetectedAt,
	}
}

// RecordsFromSamples converts engine samples to their persisted form.
func RecordsFromSamples(samples []engine.Sample) []VolumeRecord {
	records := make([]VolumeRecord, 0, len(samples))
	for _, s := range samples {
		records = append(records, VolumeRecord{
			Timestamp: s.Timestamp,
			Volume:    s.Volume.InexactFloat64(),
		})
	}
	return records
}

// SamplesFromRecords converts persisted records back into engine samples.
func SamplesFromRecords(records []VolumeRecord) []engine.Sample {
	samples := make([]engine.Sample, 0, len(records))
	for _, r := range records {
		samples = append(samples, engine.Sample{
			Timestamp: r.Timestamp,
			Volume:    decimal.NewFromFloat(r.Volume),
		})
	}
	return samples
}

// SnapshotToRecords converts a full store snapshot for persistence.
func SnapshotToRecords(snapshot map[string][]engine.Sample) map[string][]VolumeRecord {
	out := make(map[string][]VolumeRecord, len(snapshot))
	for symbol, samples := range snapshot {
		out[symbol] = RecordsFromSamples(samples)
	}
	return out
}

// SnapshotFromRecords converts loaded records into engine histories.
func SnapshotFromRecords(histories map[string][]VolumeRecord) map[string][]engine.Sample {
	out := make(map[string][]engine.Sample, len(histories))
	for symbol, records := range histories {
		out[symbol] = SamplesFromRecords(records)
	}
	return out
}
