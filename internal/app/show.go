package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"bybit-volume-scanner/internal/storage"
)

// Show prints either the recent alert audit log (database required) or the
// tracked symbols from the volume data file.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	if opts.Alerts {
		return a.showAlerts(ctx, opts.Limit)
	}
	return a.showSymbols(ctx, opts.Limit)
}

func (a *App) showAlerts(ctx context.Context, limit int) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show alerts")
	}
	if closeStore != nil {
		defer closeStore()
	}

	alerts, err := store.ListRecentAlerts(ctx, limit)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Fprintln(os.Stdout, "no alerts found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tSymbol\tVolume\tAvg Volume\tIncrease%\tPrice")

	for _, alert := range alerts {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\n",
			alert.DetectedAt.UTC().Format(time.RFC3339),
			alert.Symbol,
			alert.CurrentVolume.StringFixed(2),
			alert.AverageVolume.StringFixed(2),
			alert.PctIncrease.StringFixed(2),
			alert.LastPrice.StringFixed(4),
		)
	}

	return writer.Flush()
}

func (a *App) showSymbols(ctx context.Context, limit int) error {
	histories, err := a.newFileStore().Load(ctx)
	if err != nil {
		return err
	}
	if len(histories) == 0 {
		fmt.Fprintln(os.Stdout, "no symbols tracked")
		return nil
	}

	type row struct {
		symbol string
		latest storage.VolumeRecord
		points int
	}

	rows := make([]row, 0, len(histories))
	for symbol, records := range histories {
		if len(records) == 0 {
			continue
		}
		rows = append(rows, row{symbol: symbol, latest: records[len(records)-1], points: len(records)})
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].latest.Volume > rows[j].latest.Volume
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Symbol\tLatest Volume\tData Points\tLast Update (UTC)")

	for _, r := range rows {
		fmt.Fprintf(
			writer,
			"%s\t%g\t%d\t%s\n",
			r.symbol,
			r.latest.Volume,
			r.points,
			r.latest.Timestamp.UTC().Format(time.RFC3339),
		)
	}

	return writer.Flush()
}
