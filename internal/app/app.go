package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"bybit-volume-scanner/internal/alerting"
	"bybit-volume-scanner/internal/config"
	"bybit-volume-scanner/internal/dashboard"
	"bybit-volume-scanner/internal/market"
	"bybit-volume-scanner/internal/service"
	"bybit-volume-scanner/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newProvider() *market.Bybit {
	return market.NewBybit(market.BybitOptions{
		BaseURL: a.Config.Bybit.BaseURL,
		Timeout: a.Config.Bybit.RequestTimeout,
	}, a.Logger)
}

func (a *App) newNotifiers() []alerting.Notifier {
	var notifiers []alerting.Notifier
	if a.Config.Alerting.Console {
		notifiers = append(notifiers, alerting.NewConsoleNotifier(nil))
	}
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		notifiers = append(notifiers, alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger))
	}
	return notifiers
}

func (a *App) newFileStore() *storage.FileStore {
	return storage.NewFileStore(a.Config.Storage.DataFile, a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool, a.Logger)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running scanning service and, when enabled, the HTTP
// dashboard alongside it.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Info().Msg("database.dsn not configured; alert audit log disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	deps := service.Deps{
		Provider:  a.newProvider(),
		Persister: a.newFileStore(),
		Notifiers: a.newNotifiers(),
	}
	if store != nil {
		deps.AlertStore = store
		deps.Archive = store
		deps.Locker = store
		deps.LockKey = a.Config.Database.AdvisoryLockKey
	}

	scanner := service.NewScanner(a.Config.Scanner, deps, a.Logger)
	if err := scanner.LoadHistory(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	if a.Config.Dashboard.Enabled {
		srv := dashboard.NewServer(dashboard.Options{
			ListenAddr:  a.Config.Dashboard.ListenAddr,
			CORSOrigins: a.Config.Dashboard.CORSOrigins,
			DataFile:    a.Config.Storage.DataFile,
		}, scanner, a.Logger)

		go func() {
			err := srv.Start(ctx)
			if err != nil {
				cancel()
			}
			errCh <- err
		}()
	}

	a.Logger.Info().
		Str("category", a.Config.Scanner.Category).
		Float64("threshold_pct", a.Config.Scanner.ThresholdPct).
		Dur("interval", a.Config.Scanner.Interval).
		Msg("starting volume scanner")

	err = scanner.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("scanner terminated with error")
		return err
	}

	if a.Config.Dashboard.Enabled {
		if dashErr := <-errCh; dashErr != nil {
			return dashErr
		}
	}

	a.Logger.Info().Msg("volume scanner stopped")
	return nil
}

// ExportOptions hold parameters for exporting a symbol's volume history.
type ExportOptions struct {
	Symbol    string
	CSVPath   string
	PNGPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit  int
	Alerts bool
}

// BackfillOptions configure the kline backfill job.
type BackfillOptions struct {
	Symbols []string
	Hours   int
	DryRun  bool
}

// SimulateOptions define the synthetic cycle inputs.
type SimulateOptions struct {
	Symbol   string
	Baseline []float64
	Current  float64
}
