package md

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

type Provider interface {
	FetchSeries(ctx context.Context, symbol string, start time.Time, timeframe Timeframe, limit int) ([]Bar, error)
}

// Normalize orders bars by timestamp and drops duplicates, keeping the last
// bar seen for a timestamp. The input slice is not modified.
func Normalize(bars []Bar) []Bar {
	out := make([]Bar, len(bars))
	copy(out, bars)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	result := out[:0]
	for _, bar := range out {
		if n := len(result); n > 0 && result[n-1].Timestamp.Equal(bar.Timestamp) {
			result[n-1] = bar
			continue
		}
		result = append(result, bar)
	}
	return result
}

func Closes(bars []Bar) []float64 {
	values := make([]float64, len(bars))
	for i, bar := range bars {
		values[i] = bar.Close
	}
	return values
}

// LastClose returns the close of the most recent bar, used as a mark price
// by the paper broker.
func LastClose(ctx context.Context, provider Provider, symbol string, timeframe Timeframe) (float64, error) {
	start := time.Now().UTC().Add(-3 * timeframe.Duration)
	bars, err := provider.FetchSeries(ctx, symbol, start, timeframe, 3)
	if err != nil {
		return 0, err
	}
	if len(bars) == 0 {
		return 0, fmt.Errorf("no bars returned for %s", symbol)
	}
	return bars[len(bars)-1].Close, nil
}

// splitSymbol turns "BTC-USD" (or "BTC/USD", "BTCUSD") into base and quote.
func splitSymbol(symbol string) (string, string) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	for _, sep := range []string{"-", "/"} {
		if base, quote, ok := strings.Cut(s, sep); ok {
			return base, quote
		}
	}
	if strings.HasSuffix(s, "USD") && len(s) > 3 {
		return strings.TrimSuffix(s, "USD"), "USD"
	}
	return s, "USD"
}
