package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"bybit-volume-scanner/internal/engine"
)

// TelegramNotifier pushes alerts through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram sink.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify sends one sendMessage call per alert.
func (n *TelegramNotifier) Notify(ctx context.Context, alerts []engine.Alert) error {
	for _, alert := range alerts {
		if err := n.send(ctx, alert); err != nil {
			return err
		}
	}
	return nil
}

func (n *TelegramNotifier) send(ctx context.Context, alert engine.Alert) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderTelegramMessage(alert),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram unexpected status: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().Str("symbol", alert.Symbol).
		Str("pct_increase", alert.PctIncrease.StringFixed(2)).
		Msg("alert dispatched (telegram)")
	return nil
}

func renderTelegramMessage(alert engine.Alert) string {
	builder := strings.Builder{}
	builder.WriteString("[Volume Spike Alert]\n")
	builder.WriteString(fmt.Sprintf("Symbol: %s\n", alert.Symbol))
	builder.WriteString(fmt.Sprintf("Current Volume: %s\n", alert.CurrentVolume.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Average Volume: %s\n", alert.AverageVolume.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Increase: %s%%\n", alert.PctIncrease.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Price: %s (%s%% 24h)\n", alert.LastPrice.String(), alert.PriceChange24h.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Detected: %s UTC\n", alert.DetectedAt.UTC().Format(time.RFC3339)))
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
