package dashboard

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"bybit-volume-scanner/internal/config"
	"bybit-volume-scanner/internal/engine"
	"bybit-volume-scanner/internal/service"
)

// Controller is the scanner control surface the dashboard drives. It is
// implemented by service.Scanner.
type Controller interface {
	Status() service.Status
	Config() config.ScannerConfig
	ApplyConfig(cfg config.ScannerConfig) error
	Start()
	Stop()
	Reset(ctx context.Context) error
	RecentAlerts() []engine.Alert
	HistoryFor(symbol string) ([]engine.Sample, bool)
	AllSymbols() []service.SymbolSummary
}

// Options tune the HTTP server.
type Options struct {
	ListenAddr  string
	CORSOrigins []string
	DataFile    string
}

// Server exposes scanner status, configuration, and alert history over HTTP.
type Server struct {
	opts       Options
	controller Controller
	logger     zerolog.Logger
}

// NewServer wires the dashboard around a scanner controller.
func NewServer(opts Options, controller Controller, logger zerolog.Logger) *Server {
	return &Server{
		opts:       opts,
		controller: controller,
		logger:     logger.With().Str("component", "dashboard").Logger(),
	}
}

// Handler builds the route table with logging and CORS middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/config", s.handleGetConfig)
	mux.HandleFunc("POST /api/config", s.handleUpdateConfig)
	mux.HandleFunc("POST /api/start", s.handleStart)
	mux.HandleFunc("POST /api/stop", s.handleStop)
	mux.HandleFunc("POST /api/reset", s.handleReset)
	mux.HandleFunc("GET /api/alerts", s.handleAlerts)
	mux.HandleFunc("GET /api/volume-history/{symbol}", s.handleVolumeHistory)
	mux.HandleFunc("GET /api/all-symbols", s.handleAllSymbols)

	var h http.Handler = mux
	h = corsMiddleware(s.opts.CORSOrigins)(h)
	h = loggingMiddleware(s.logger)(h)
	return h
}

// Start runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.opts.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Str("addr", s.opts.ListenAddr).Msg("dashboard listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
