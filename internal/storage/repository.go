package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertAlertSQL = `INSERT INTO volume_alerts (
        symbol,
        current_volume,
        avg_volume,
        pct_increase,
        last_price,
        price_change_24h,
        detected_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    )
    RETURNING id, created_at;`

	listRecentAlertsSQL = `SELECT
        id,
        symbol,
        current_volume,
        avg_volume,
        pct_increase,
        last_price,
        price_change_24h,
        detected_at,
        created_at
    FROM volume_alerts
    ORDER BY detected_at DESC
    LIMIT $1;`

	deleteAlertsBeforeSQL = `DELETE FROM volume_alerts WHERE detected_at < $1;`

	deleteHistorySQL = `DELETE FROM volume_history;`

	loadHistoriesSQL = `SELECT symbol, sample_ts, volume
    FROM volume_history
    ORDER BY symbol, sample_ts;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// AlertStore defines operations for the alert audit log.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error)
	ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error)
	DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error
}

// HistoryArchive mirrors the volume-history snapshot into the database.
type HistoryArchive interface {
	ReplaceHistories(ctx context.Context, histories map[string][]VolumeRecord) error
	LoadHistories(ctx context.Context) (map[string][]VolumeRecord, error)
}

// AdvisoryLocker exposes advisory lock helpers so only one replica scans.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates Postgres access to alerts and history mirrors.
type Store struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool, logger zerolog.Logger) *Store {
	return &Store{
		pool:   pool,
		logger: logger.With().Str("component", "pg_store").Logger(),
	}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			s.logger.Warn().Err(err).Int64("key", key).Msg("advisory unlock failed; lock released with connection")
		}
		conn.Release()
	}
	return unlock, true, nil
}

// InsertAlert persists an alert emission.
func (s *Store) InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRecord{}, err
	}

	row := pool.QueryRow(ctx, insertAlertSQL,
		alert.Symbol,
		alert.CurrentVolume.String(),
		alert.AverageVolume.String(),
		alert.PctIncrease.String(),
		alert.LastPrice.String(),
		alert.PriceChange24h.String(),
		alert.DetectedAt,
	)

	rec := alert
	if scanErr := row.Scan(&rec.ID, &rec.CreatedAt); scanErr != nil {
		return AlertRecord{}, fmt.Errorf("insert alert: %w", scanErr)
	}
	return rec, nil
}

// ListRecentAlerts lists the most recent alerts, newest first.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]AlertRecord, 0, limit)
	for rows.Next() {
		rec, scanErr := scanAlertRecord(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// DeleteAlertsBefore deletes historical alerts.
func (s *Store) DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteAlertsBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete alerts before: %w", execErr)
	}
	return nil
}

// ReplaceHistories swaps the mirrored history snapshot in one transaction.
func (s *Store) ReplaceHistories(ctx context.Context, histories map[string][]VolumeRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin history replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, deleteHistorySQL); err != nil {
		return fmt.Errorf("clear history mirror: %w", err)
	}

	rows := make([][]any, 0)
	for symbol, records := range histories {
		for _, r := range records {
			rows = append(rows, []any{symbol, r.Timestamp, r.Volume})
		}
	}
	if len(rows) > 0 {
		if _, err := tx.CopyFrom(
			ctx,
			pgx.Identifier{"volume_history"},
			[]string{"symbol", "sample_ts", "volume"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return fmt.Errorf("copy history rows: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit history replace: %w", err)
	}
	return nil
}

// LoadHistories reads the mirrored snapshot back, ordered by timestamp.
func (s *Store) LoadHistories(ctx context.Context) (map[string][]VolumeRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, loadHistoriesSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("load histories: %w", queryErr)
	}
	defer rows.Close()

	histories := make(map[string][]VolumeRecord)
	for rows.Next() {
		var symbol string
		var record VolumeRecord
		if err := rows.Scan(&symbol, &record.Timestamp, &record.Volume); err != nil {
			return nil, err
		}
		histories[symbol] = append(histories[symbol], record)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return histories, nil
}

func scanAlertRecord(rows pgx.Rows) (AlertRecord, error) {
	var (
		rec        AlertRecord
		currentStr string
		avgStr     string
		pctStr     string
		priceStr   string
		changeStr  string
	)

	if err := rows.Scan(
		&rec.ID,
		&rec.Symbol,
		&currentStr,
		&avgStr,
		&pctStr,
		&priceStr,
		&changeStr,
		&rec.DetectedAt,
		&rec.CreatedAt,
	); err != nil {
		return AlertRecord{}, err
	}

	fields := []struct {
		dst  *decimal.Decimal
		src  string
		name string
	}{
		{&rec.CurrentVolume, currentStr, "current volume"},
		{&rec.AverageVolume, avgStr, "avg volume"},
		{&rec.PctIncrease, pctStr, "pct increase"},
		{&rec.LastPrice, priceStr, "last price"},
		{&rec.PriceChange24h, changeStr, "price change"},
	}
	for _, f := range fields {
		value, err := decimal.NewFromString(f.src)
		if err != nil {
			return AlertRecord{}, fmt.Errorf("parse %s: %w", f.name, err)
		}
		*f.dst = value
	}

	return rec, nil
}

var (
	_ AlertStore     = (*Store)(nil)
	_ HistoryArchive = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
