package app

import (
	"context"

	"bybit-volume-scanner/internal/storage"
)

// ResetHistory clears the volume data file and, when a database is
// configured, the mirrored history table.
func (a *App) ResetHistory(ctx context.Context) error {
	if err := a.newFileStore().Reset(ctx); err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store != nil {
		defer closeStore()
		if err := store.ReplaceHistories(ctx, map[string][]storage.VolumeRecord{}); err != nil {
			return err
		}
	}

	a.Logger.Info().Msg("volume history reset")
	return nil
}
