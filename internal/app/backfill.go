package app

import (
	"context"
	"errors"
	"sort"

	"bybit-volume-scanner/internal/market"
	"bybit-volume-scanner/internal/storage"
)

// Backfill seeds volume history from hourly klines so the scanner has a
// baseline before its first live cycle. Without explicit symbols it refreshes
// every symbol already present in the data file.
func (a *App) Backfill(ctx context.Context, opts BackfillOptions) error {
	if opts.Hours <= 0 {
		opts.Hours = a.Config.Scanner.LookbackHours
	}

	category, err := market.ParseCategory(a.Config.Scanner.Category)
	if err != nil {
		return err
	}

	fileStore := a.newFileStore()
	histories, err := fileStore.Load(ctx)
	if err != nil {
		return err
	}

	symbols := opts.Symbols
	if len(symbols) == 0 {
		for symbol := range histories {
			symbols = append(symbols, symbol)
		}
		sort.Strings(symbols)
	}
	if len(symbols) == 0 {
		return errors.New("no symbols to backfill; pass --symbol or run the scanner first")
	}

	provider := a.newProvider()

	processed := 0
	failed := 0
	for _, symbol := range symbols {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		klines, err := provider.FetchHourlyKlines(ctx, category, symbol, opts.Hours)
		if err != nil {
			failed++
			a.Logger.Error().Err(err).Str("symbol", symbol).Msg("backfill fetch failed")
			continue
		}
		if len(klines) == 0 {
			a.Logger.Warn().Str("symbol", symbol).Msg("no klines returned")
			continue
		}

		merged := mergeKlines(histories[symbol], klines)
		a.Logger.Info().
			Str("symbol", symbol).
			Int("fetched", len(klines)).
			Int("history", len(merged)).
			Msg("backfilled symbol")
		histories[symbol] = merged
		processed++
	}

	if opts.DryRun {
		a.Logger.Info().Int("processed", processed).Int("failed", failed).Msg("dry run; data file not written")
		return nil
	}

	if processed > 0 {
		if err := fileStore.Save(ctx, histories); err != nil {
			return err
		}
	}

	a.Logger.Info().Int("processed", processed).Int("failed", failed).Msg("backfill complete")
	if failed > 0 {
		return errors.New("some symbols failed to backfill; see log")
	}
	return nil
}

// mergeKlines folds candle volumes into an existing history, skipping
// timestamps already recorded, and returns the result in chronological order.
func mergeKlines(existing []storage.VolumeRecord, klines []market.Kline) []storage.VolumeRecord {
	seen := make(map[int64]struct{}, len(existing))
	for _, record := range existing {
		seen[record.Timestamp.Unix()] = struct{}{}
	}

	merged := append([]storage.VolumeRecord(nil), existing...)
	for _, kline := range klines {
		if _, ok := seen[kline.Start.Unix()]; ok {
			continue
		}
		merged = append(merged, storage.VolumeRecord{
			Timestamp: kline.Start,
			Volume:    kline.Volume.InexactFloat64(),
		})
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})
	return merged
}
