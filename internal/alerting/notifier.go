package alerting

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"bybit-volume-scanner/internal/engine"
)

// Notifier delivers the alerts produced by one scan cycle. The engine has no
// knowledge of which sinks are attached.
type Notifier interface {
	Notify(ctx context.Context, alerts []engine.Alert) error
}

// ConsoleNotifier prints banner-style alerts, the scanner's built-in sink.
type ConsoleNotifier struct {
	mtx sync.Mutex
	out io.Writer
}

// NewConsoleNotifier writes to the given writer, defaulting to stdout.
func NewConsoleNotifier(out io.Writer) *ConsoleNotifier {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleNotifier{out: out}
}

// Notify renders each alert as a framed block.
func (n *ConsoleNotifier) Notify(ctx context.Context, alerts []engine.Alert) error {
	n.mtx.Lock()
	defer n.mtx.Unlock()

	for _, alert := range alerts {
		if _, err := io.WriteString(n.out, renderConsoleAlert(alert)); err != nil {
			return fmt.Errorf("write console alert: %w", err)
		}
	}
	return nil
}

func renderConsoleAlert(alert engine.Alert) string {
	rule := strings.Repeat("=", 80)

	var b strings.Builder
	b.WriteString("\n" + rule + "\n")
	b.WriteString("VOLUME SPIKE ALERT\n")
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "Symbol:           %s\n", alert.Symbol)
	fmt.Fprintf(&b, "Current Volume:   %s\n", alert.CurrentVolume.StringFixed(2))
	fmt.Fprintf(&b, "Average Volume:   %s\n", alert.AverageVolume.StringFixed(2))
	fmt.Fprintf(&b, "Volume Increase:  %s%%\n", alert.PctIncrease.StringFixed(2))
	fmt.Fprintf(&b, "Current Price:    %s\n", alert.LastPrice.String())
	fmt.Fprintf(&b, "Price Change 24h: %s%%\n", alert.PriceChange24h.StringFixed(2))
	fmt.Fprintf(&b, "Time:             %s\n", alert.DetectedAt.UTC().Format(time.RFC3339))
	b.WriteString(rule + "\n\n")
	return b.String()
}

var _ Notifier = (*ConsoleNotifier)(nil)
