package md

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"sigtrade/internal/tradeerr"
)

const defaultBinanceURL = "https://api.binance.com"

// BinanceProvider reads public klines; no credentials are needed.
type BinanceProvider struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

func NewBinanceProvider(baseURL string, timeout time.Duration, log zerolog.Logger) *BinanceProvider {
	if baseURL == "" {
		baseURL = defaultBinanceURL
	}
	return &BinanceProvider{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(10), 20),
		log:     log,
	}
}

func (p *BinanceProvider) FetchSeries(ctx context.Context, symbol string, start time.Time, timeframe Timeframe, limit int) ([]Bar, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, tradeerr.Transient("fetch klines", err)
	}

	params := url.Values{}
	params.Set("symbol", binanceSymbol(symbol))
	params.Set("interval", timeframe.Name)
	if limit > 0 {
		// binance caps a single request at 1000 klines
		params.Set("limit", strconv.Itoa(min(limit, 1000)))
	}
	if !start.IsZero() {
		params.Set("startTime", strconv.FormatInt(start.UnixMilli(), 10))
	}

	u := fmt.Sprintf("%s/api/v3/klines?%s", p.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build klines request: %w", err)
	}

	res, err := p.http.Do(req)
	if err != nil {
		p.log.Error().Err(err).Str("symbol", symbol).Msg("fetch klines failed")
		return nil, tradeerr.Transient("fetch klines", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, tradeerr.Transient("fetch klines", fmt.Errorf("binance klines status %d", res.StatusCode))
	}

	var raw [][]any
	if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
		return nil, tradeerr.Transient("decode klines", err)
	}

	bars := make([]Bar, 0, len(raw))
	for i, item := range raw {
		if len(item) < 6 {
			continue
		}
		openTime, ok := item[0].(float64)
		if !ok {
			continue
		}
		var fields [5]float64
		for j := range fields {
			v, err := toFloat(item[j+1])
			if err != nil {
				return nil, tradeerr.Transient("decode klines", fmt.Errorf("row %d field %d: %w", i, j+1, err))
			}
			fields[j] = v
		}
		bars = append(bars, Bar{
			Timestamp: time.UnixMilli(int64(openTime)).UTC(),
			Open:      fields[0],
			High:      fields[1],
			Low:       fields[2],
			Close:     fields[3],
			Volume:    fields[4],
		})
	}
	p.log.Debug().Str("symbol", symbol).Int("bars", len(bars)).Msg("klines fetched")
	return Normalize(bars), nil
}

func binanceSymbol(symbol string) string {
	base, quote := splitSymbol(symbol)
	if quote == "USD" {
		quote = "USDT"
	}
	return base + quote
}

func toFloat(v any) (float64, error) {
	switch val := v.(type) {
	case string:
		return strconv.ParseFloat(val, 64)
	case float64:
		return val, nil
	default:
		return 0, fmt.Errorf("unexpected kline value %v", v)
	}
}
