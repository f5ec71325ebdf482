package dashboard

import (
	"encoding/json"
	"net/http"
	"time"

	"bybit-volume-scanner/internal/config"
	"bybit-volume-scanner/internal/storage"
)

// writeJSON marshals v and writes it with the given status code. A marshal
// failure falls back to a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// configPayload is the wire form of the scanner configuration. Field names
// match the data files and clients of earlier scanner versions.
type configPayload struct {
	Category        string   `json:"category"`
	TimeframeHours  int      `json:"timeframe_hours"`
	ThresholdPct    float64  `json:"volume_increase_threshold"`
	IntervalSeconds int      `json:"check_interval_seconds"`
	MinVolume       *float64 `json:"min_volume,omitempty"`
	RetentionFactor *float64 `json:"retention_factor,omitempty"`
}

func payloadFromConfig(cfg config.ScannerConfig) configPayload {
	minVolume := cfg.MinVolume
	retention := cfg.RetentionFactor
	return configPayload{
		Category:        cfg.Category,
		TimeframeHours:  cfg.LookbackHours,
		ThresholdPct:    cfg.ThresholdPct,
		IntervalSeconds: int(cfg.Interval / time.Second),
		MinVolume:       &minVolume,
		RetentionFactor: &retention,
	}
}

// merge overlays the payload on top of the currently accepted config, so
// clients may post partial updates.
func (p configPayload) merge(current config.ScannerConfig) config.ScannerConfig {
	next := current
	if p.Category != "" {
		next.Category = p.Category
	}
	if p.TimeframeHours != 0 {
		next.LookbackHours = p.TimeframeHours
	}
	if p.ThresholdPct != 0 {
		next.ThresholdPct = p.ThresholdPct
	}
	if p.IntervalSeconds != 0 {
		next.Interval = time.Duration(p.IntervalSeconds) * time.Second
	}
	if p.MinVolume != nil {
		next.MinVolume = *p.MinVolume
	}
	if p.RetentionFactor != nil {
		next.RetentionFactor = *p.RetentionFactor
	}
	return next
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Status())
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	payload := payloadFromConfig(s.controller.Config())
	writeJSON(w, http.StatusOK, map[string]any{
		"category":                  payload.Category,
		"timeframe_hours":           payload.TimeframeHours,
		"volume_increase_threshold": payload.ThresholdPct,
		"check_interval_seconds":    payload.IntervalSeconds,
		"min_volume":                *payload.MinVolume,
		"retention_factor":          *payload.RetentionFactor,
		"data_file":                 s.opts.DataFile,
		"tracked_symbols":           s.controller.Status().TrackedSymbols,
	})
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var payload configPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	next := payload.merge(s.controller.Config())
	if err := s.controller.ApplyConfig(next); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "configuration updated; takes effect next scan cycle",
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.controller.Start()
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "scanner started"})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.controller.Stop()
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "scanner stopped"})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "volume history reset"})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	alerts := s.controller.RecentAlerts()
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

func (s *Server) handleVolumeHistory(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")

	samples, ok := s.controller.HistoryFor(symbol)
	if !ok {
		writeError(w, http.StatusNotFound, "symbol not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":  symbol,
		"history": storage.RecordsFromSamples(samples),
	})
}

func (s *Server) handleAllSymbols(w http.ResponseWriter, r *http.Request) {
	symbols := s.controller.AllSymbols()
	writeJSON(w, http.StatusOK, map[string]any{
		"symbols": symbols,
		"total":   len(symbols),
	})
}

const indexHTML = `<!DOCTYPE html>
<html>
<head><title>Bybit Volume Scanner</title></head>
<body>
<h1>Bybit Volume Scanner</h1>
<p>API endpoints: /api/status, /api/config, /api/alerts, /api/all-symbols,
/api/volume-history/{symbol}, /api/start, /api/stop, /api/reset</p>
</body>
</html>
`

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}
