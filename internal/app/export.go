package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"bybit-volume-scanner/internal/storage"
)

// Export renders one symbol's volume history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.Symbol == "" {
		return errors.New("--symbol is required")
	}
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	histories, err := a.newFileStore().Load(ctx)
	if err != nil {
		return err
	}

	records, ok := histories[opts.Symbol]
	if !ok || len(records) == 0 {
		return fmt.Errorf("no volume history for symbol %s", opts.Symbol)
	}

	downsampled := downsampleRecords(records, opts.MaxPoints)
	a.Logger.Info().
		Str("symbol", opts.Symbol).
		Int("total", len(records)).
		Int("exported", len(downsampled)).
		Msg("exporting volume history")

	if opts.CSVPath != "" {
		if err := writeRecordsCSV(opts.CSVPath, opts.Symbol, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeRecordsPNG(opts.PNGPath, opts.Symbol, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleRecords(records []storage.VolumeRecord, max int) []storage.VolumeRecord {
	if max <= 0 || len(records) <= max {
		return records
	}

	result := make([]storage.VolumeRecord, 0, max)
	step := float64(len(records)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(records) {
			idx = len(records) - 1
		}
		result = append(result, records[idx])
	}
	return result
}

func writeRecordsCSV(path, symbol string, records []storage.VolumeRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"symbol", "timestamp", "volume_24h"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, record := range records {
		row := []string{
			symbol,
			record.Timestamp.UTC().Format(time.RFC3339),
			fmt.Sprintf("%g", record.Volume),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeRecordsPNG(path, symbol string, records []storage.VolumeRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(records))
	volumes := make([]float64, len(records))
	for i, record := range records {
		x[i] = record.Timestamp
		volumes[i] = record.Volume
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "24h Volume",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.2f")
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    symbol,
				XValues: x,
				YValues: volumes,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
