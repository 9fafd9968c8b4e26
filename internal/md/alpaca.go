package md

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/rs/zerolog"

	"sigtrade/internal/tradeerr"
)

type AlpacaProvider struct {
	client *marketdata.Client
	log    zerolog.Logger
}

func NewAlpacaProvider(apiKey, apiSecret string, timeout time.Duration, log zerolog.Logger) *AlpacaProvider {
	client := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:     apiKey,
		APISecret:  apiSecret,
		HTTPClient: &http.Client{Timeout: timeout},
	})
	return &AlpacaProvider{client: client, log: log}
}

func (p *AlpacaProvider) FetchSeries(ctx context.Context, symbol string, start time.Time, timeframe Timeframe, limit int) ([]Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, tradeerr.Transient("fetch crypto bars", err)
	}
	tf, err := alpacaTimeFrame(timeframe)
	if err != nil {
		return nil, err
	}

	pair := alpacaPair(symbol)
	raw, err := p.client.GetCryptoBars(pair, marketdata.GetCryptoBarsRequest{
		TimeFrame:  tf,
		Start:      start,
		TotalLimit: limit,
	})
	if err != nil {
		p.log.Error().Err(err).Str("symbol", pair).Msg("fetch crypto bars failed")
		return nil, tradeerr.Transient("fetch crypto bars", err)
	}

	bars := make([]Bar, 0, len(raw))
	for _, b := range raw {
		bars = append(bars, Bar{
			Timestamp: b.Timestamp.UTC(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		})
	}
	p.log.Debug().Str("symbol", pair).Int("bars", len(bars)).Msg("crypto bars fetched")
	return Normalize(bars), nil
}

func alpacaPair(symbol string) string {
	base, quote := splitSymbol(symbol)
	return base + "/" + quote
}

func alpacaTimeFrame(timeframe Timeframe) (marketdata.TimeFrame, error) {
	switch timeframe.Name {
	case "1m":
		return marketdata.NewTimeFrame(1, marketdata.Min), nil
	case "5m":
		return marketdata.NewTimeFrame(5, marketdata.Min), nil
	case "15m":
		return marketdata.NewTimeFrame(15, marketdata.Min), nil
	case "1h":
		return marketdata.NewTimeFrame(1, marketdata.Hour), nil
	case "4h":
		return marketdata.NewTimeFrame(4, marketdata.Hour), nil
	case "1d":
		return marketdata.NewTimeFrame(1, marketdata.Day), nil
	default:
		return marketdata.TimeFrame{}, fmt.Errorf("unsupported alpaca timeframe: %s", timeframe.Name)
	}
}
