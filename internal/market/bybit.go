package market

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	bybit "github.com/hirokisan/bybit/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var dec100 = decimal.NewFromInt(100)

// BybitOptions parameterise the Bybit client.
type BybitOptions struct {
	// BaseURL overrides the production endpoint, mainly for tests.
	BaseURL string
	Timeout time.Duration
}

// Bybit fetches tickers and klines from the Bybit V5 market API.
type Bybit struct {
	client *bybit.Client
	logger zerolog.Logger
}

// NewBybit constructs a Bybit market-data client. Only public endpoints are
// used, so no credentials are required.
func NewBybit(opts BybitOptions, logger zerolog.Logger) *Bybit {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := bybit.NewClient().WithHTTPClient(&http.Client{Timeout: timeout})
	if opts.BaseURL != "" {
		client = client.WithBaseURL(opts.BaseURL)
	}

	return &Bybit{
		client: client,
		logger: logger.With().Str("component", "bybit_fetcher").Logger(),
	}
}

func categoryV5(category Category) (bybit.CategoryV5, error) {
	switch category {
	case CategorySpot:
		return bybit.CategoryV5Spot, nil
	case CategoryLinear:
		return bybit.CategoryV5Linear, nil
	case CategoryInverse:
		return bybit.CategoryV5Inverse, nil
	}
	return "", fmt.Errorf("unknown market category %q", category)
}

// FetchTickers retrieves the full ticker list for a category. The underlying
// SDK does not thread contexts through its requests; cancellation is bounded
// by the HTTP client timeout set at construction.
func (b *Bybit) FetchTickers(ctx context.Context, category Category) ([]Ticker, error) {
	cat, err := categoryV5(category)
	if err != nil {
		return nil, err
	}

	res, err := b.client.V5().Market().GetTickers(bybit.V5GetTickersParam{Category: cat})
	if err != nil {
		return nil, fmt.Errorf("get tickers: %w", err)
	}
	if res.RetCode != 0 {
		return nil, fmt.Errorf("get tickers: bybit retCode %d: %s", res.RetCode, res.RetMsg)
	}

	var tickers []Ticker
	dropped := 0

	switch category {
	case CategorySpot:
		if res.Result.Spot == nil {
			return nil, fmt.Errorf("get tickers: empty spot result")
		}
		tickers = make([]Ticker, 0, len(res.Result.Spot.List))
		for _, item := range res.Result.Spot.List {
			ticker, ok := buildTicker(string(item.Symbol), item.Volume24H, item.LastPrice, item.Price24HPcnt)
			if !ok {
				dropped++
				continue
			}
			tickers = append(tickers, ticker)
		}
	default:
		if res.Result.LinearInverse == nil {
			return nil, fmt.Errorf("get tickers: empty %s result", category)
		}
		tickers = make([]Ticker, 0, len(res.Result.LinearInverse.List))
		for _, item := range res.Result.LinearInverse.List {
			ticker, ok := buildTicker(string(item.Symbol), item.Volume24H, item.LastPrice, item.Price24HPcnt)
			if !ok {
				dropped++
				continue
			}
			tickers = append(tickers, ticker)
		}
	}

	if dropped > 0 {
		b.logger.Warn().Int("dropped", dropped).Str("category", string(category)).Msg("unparseable ticker entries skipped")
	}

	return tickers, nil
}

// buildTicker parses the exchange's string fields. Bybit reports the 24h
// price change as a fraction ("0.0234"); it is converted to a percentage.
func buildTicker(symbol, volume, lastPrice, pricePcnt string) (Ticker, bool) {
	if symbol == "" {
		return Ticker{}, false
	}

	vol, err := decimal.NewFromString(volume)
	if err != nil {
		return Ticker{}, false
	}

	price := decimal.Decimal{}
	if lastPrice != "" {
		if price, err = decimal.NewFromString(lastPrice); err != nil {
			return Ticker{}, false
		}
	}

	change := decimal.Decimal{}
	if pricePcnt != "" {
		frac, err := decimal.NewFromString(pricePcnt)
		if err != nil {
			return Ticker{}, false
		}
		change = frac.Mul(dec100)
	}

	return Ticker{
		Symbol:         symbol,
		Volume24h:      vol,
		LastPrice:      price,
		PriceChange24h: change,
	}, true
}

// FetchHourlyKlines retrieves up to the requested number of 1h candles
// ending now. As with FetchTickers, the SDK owns request deadlines via its
// HTTP client timeout.
func (b *Bybit) FetchHourlyKlines(ctx context.Context, category Category, symbol string, hours int) ([]Kline, error) {
	cat, err := categoryV5(category)
	if err != nil {
		return nil, err
	}
	if symbol == "" {
		return nil, fmt.Errorf("get klines: symbol is required")
	}
	if hours <= 0 {
		return nil, fmt.Errorf("get klines: hours must be positive")
	}

	end := time.Now().UnixMilli()
	start := time.Now().Add(-time.Duration(hours) * time.Hour).UnixMilli()

	startMs := start
	endMs := end
	limit := hours
	if limit > 1000 {
		limit = 1000
	}

	res, err := b.client.V5().Market().GetKline(bybit.V5GetKlineParam{
		Category: cat,
		Symbol:   bybit.SymbolV5(symbol),
		Interval: bybit.Interval60,
		Start:    &startMs,
		End:      &endMs,
		Limit:    &limit,
	})
	if err != nil {
		return nil, fmt.Errorf("get klines: %w", err)
	}
	if res.RetCode != 0 {
		return nil, fmt.Errorf("get klines: bybit retCode %d: %s", res.RetCode, res.RetMsg)
	}

	klines := make([]Kline, 0, len(res.Result.List))
	for _, item := range res.Result.List {
		startTime, err := strconv.ParseInt(item.StartTime, 10, 64)
		if err != nil {
			continue
		}
		volume, err := decimal.NewFromString(item.Volume)
		if err != nil {
			continue
		}
		klines = append(klines, Kline{
			Start:  time.UnixMilli(startTime).UTC(),
			Volume: volume,
		})
	}

	// Bybit returns klines newest first; backfill wants chronological order.
	for i, j := 0, len(klines)-1; i < j; i, j = i+1, j-1 {
		klines[i], klines[j] = klines[j], klines[i]
	}

	return klines, nil
}

var (
	_ TickerProvider = (*Bybit)(nil)
	_ KlineProvider  = (*Bybit)(nil)
)
