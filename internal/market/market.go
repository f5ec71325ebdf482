package market

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Category identifies a Bybit market category.
type Category string

const (
	CategorySpot    Category = "spot"
	CategoryLinear  Category = "linear"
	CategoryInverse Category = "inverse"
)

// ParseCategory validates a category string from config or the dashboard.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategorySpot, CategoryLinear, CategoryInverse:
		return Category(s), nil
	}
	return "", fmt.Errorf("unknown market category %q", s)
}

// Ticker is one trading pair's latest 24h snapshot.
type Ticker struct {
	Symbol         string
	Volume24h      decimal.Decimal
	LastPrice      decimal.Decimal
	PriceChange24h decimal.Decimal
}

// Kline is a single historical candle, reduced to what backfill needs.
type Kline struct {
	Start  time.Time
	Volume decimal.Decimal
}

// TickerProvider returns the latest snapshot for every pair in a category.
// Implementations own all network and transient-error concerns; a failed
// fetch degrades the cycle to zero alerts with no store mutation.
type TickerProvider interface {
	FetchTickers(ctx context.Context, category Category) ([]Ticker, error)
}

// KlineProvider returns hourly candles, used to seed volume history for
// symbols without local data.
type KlineProvider interface {
	FetchHourlyKlines(ctx context.Context, category Category, symbol string, hours int) ([]Kline, error)
}
