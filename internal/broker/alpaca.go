package broker

import (
	"context"
	"net/http"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"sigtrade/internal/tradeerr"
)

type AlpacaClient struct {
	trading *alpaca.Client
	data    *marketdata.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

func NewAlpaca(apiKey, apiSecret, baseURL string, timeout time.Duration, log zerolog.Logger) *AlpacaClient {
	httpClient := &http.Client{Timeout: timeout}
	return &AlpacaClient{
		trading: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:     apiKey,
			APISecret:  apiSecret,
			BaseURL:    baseURL,
			HTTPClient: httpClient,
		}),
		data: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:     apiKey,
			APISecret:  apiSecret,
			HTTPClient: httpClient,
		}),
		// alpaca allows 200 requests per minute per account
		limiter: rate.NewLimiter(rate.Limit(3), 10),
		log:     log,
	}
}

func (c *AlpacaClient) wait(ctx context.Context, op string) error {
	return tradeerr.Transient(op, c.limiter.Wait(ctx))
}

func (c *AlpacaClient) Account(ctx context.Context) (Account, error) {
	if err := c.wait(ctx, "fetch account"); err != nil {
		return Account{}, err
	}
	acct, err := c.trading.GetAccount()
	if err != nil {
		c.log.Error().Err(err).Msg("fetch account failed")
		return Account{}, tradeerr.Transient("fetch account", err)
	}
	c.log.Debug().Str("buying_power", acct.BuyingPower.String()).Msg("account fetched")
	return Account{BuyingPower: acct.BuyingPower}, nil
}

func (c *AlpacaClient) Holdings(ctx context.Context) ([]Holding, error) {
	if err := c.wait(ctx, "fetch positions"); err != nil {
		return nil, err
	}
	positions, err := c.trading.GetPositions()
	if err != nil {
		c.log.Error().Err(err).Msg("fetch positions failed")
		return nil, tradeerr.Transient("fetch positions", err)
	}
	holdings := make([]Holding, 0, len(positions))
	for _, p := range positions {
		holdings = append(holdings, Holding{AssetCode: assetCode(p.Symbol), Quantity: p.Qty})
	}
	return holdings, nil
}

func (c *AlpacaClient) BestBidAsk(ctx context.Context, symbol string) (Quote, error) {
	if err := c.wait(ctx, "fetch quote"); err != nil {
		return Quote{}, err
	}
	pair := assetCode(symbol) + "/USD"
	q, err := c.data.GetLatestCryptoQuote(pair, marketdata.GetLatestCryptoQuoteRequest{})
	if err != nil {
		c.log.Error().Err(err).Str("symbol", pair).Msg("fetch quote failed")
		return Quote{}, tradeerr.Transient("fetch quote", err)
	}
	return Quote{
		Symbol: symbol,
		Bid:    decimal.NewFromFloat(q.BidPrice),
		Ask:    decimal.NewFromFloat(q.AskPrice),
	}, nil
}

func (c *AlpacaClient) PlaceOrder(ctx context.Context, req OrderRequest) (OrderRef, error) {
	if err := req.Validate(); err != nil {
		return OrderRef{}, tradeerr.Invariantf("place order", "%v", err)
	}
	if err := c.wait(ctx, "place order"); err != nil {
		return OrderRef{}, err
	}
	qty := req.Quantity
	order, err := c.trading.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:        assetCode(req.Symbol) + "/USD",
		Qty:           &qty,
		Side:          alpaca.Side(req.Side),
		Type:          alpaca.Market,
		TimeInForce:   alpaca.GTC,
		ClientOrderID: req.ClientOrderID,
	})
	if err != nil {
		c.log.Error().Err(err).Str("side", string(req.Side)).Str("symbol", req.Symbol).Str("qty", qty.String()).Msg("place order failed")
		return OrderRef{}, tradeerr.Transient("place order", err)
	}

	c.log.Info().Str("order_id", order.ID).Str("side", string(req.Side)).Str("symbol", req.Symbol).
		Str("qty", qty.String()).Str("status", string(order.Status)).Msg("place order success")
	return OrderRef{
		ID:            order.ID,
		ClientOrderID: order.ClientOrderID,
		Status:        string(order.Status),
	}, nil
}
