package broker

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"sigtrade/internal/tradeerr"
)

const defaultRobinhoodURL = "https://trading.robinhood.com"

const (
	rhAccountsPath = "/api/v1/crypto/trading/accounts/"
	rhHoldingsPath = "/api/v1/crypto/trading/holdings/"
	rhQuotePath    = "/api/v1/crypto/marketdata/best_bid_ask/"
	rhOrdersPath   = "/api/v1/crypto/trading/orders/"
)

// RobinhoodClient talks to the Robinhood crypto trading API. Every request
// is signed with ed25519 over apiKey + timestamp + path + method + body.
type RobinhoodClient struct {
	baseURL string
	apiKey  string
	key     ed25519.PrivateKey
	http    *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
	now     func() time.Time
}

// NewRobinhood accepts a base64 private key holding either a 32 byte seed or
// a full 64 byte ed25519 key.
func NewRobinhood(baseURL, apiKey, privateKey string, timeout time.Duration, log zerolog.Logger) (*RobinhoodClient, error) {
	if apiKey == "" {
		return nil, tradeerr.Configf("robinhood api key is required")
	}
	raw, err := base64.StdEncoding.DecodeString(privateKey)
	if err != nil {
		return nil, tradeerr.Configf("decode robinhood private key: %v", err)
	}
	var key ed25519.PrivateKey
	switch len(raw) {
	case ed25519.SeedSize:
		key = ed25519.NewKeyFromSeed(raw)
	case ed25519.PrivateKeySize:
		key = ed25519.PrivateKey(raw)
	default:
		return nil, tradeerr.Configf("robinhood private key must be %d or %d bytes, got %d", ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
	}
	if baseURL == "" {
		baseURL = defaultRobinhoodURL
	}
	return &RobinhoodClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		key:     key,
		http:    &http.Client{Timeout: timeout},
		// robinhood allows 100 requests per minute with bursts of 300
		limiter: rate.NewLimiter(rate.Limit(100.0/60.0), 30),
		log:     log,
		now:     time.Now,
	}, nil
}

func (c *RobinhoodClient) sign(timestamp, path, method, body string) string {
	msg := c.apiKey + timestamp + path + method + body
	return base64.StdEncoding.EncodeToString(ed25519.Sign(c.key, []byte(msg)))
}

// do sends a signed request. path includes the query string.
func (c *RobinhoodClient) do(ctx context.Context, method, path string, payload any, out any) error {
	op := method + " " + path
	if err := c.limiter.Wait(ctx); err != nil {
		return tradeerr.Transient(op, err)
	}

	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return fmt.Errorf("encode %s: %w", op, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s: %w", op, err)
	}
	ts := strconv.FormatInt(c.now().Unix(), 10)
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("x-timestamp", ts)
	req.Header.Set("x-signature", c.sign(ts, path, method, string(body)))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return tradeerr.Transient(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return tradeerr.Transient(op, err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return tradeerr.Configf("%s: status %d: %s", op, resp.StatusCode, truncate(data))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		c.log.Warn().Str("op", op).Int("status", resp.StatusCode).Msg("robinhood request failed")
		return tradeerr.Transient(op, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(data)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return tradeerr.Transient(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func truncate(b []byte) string {
	const limit = 256
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}

type rhAccount struct {
	AccountNumber string          `json:"account_number"`
	Status        string          `json:"status"`
	BuyingPower   decimal.Decimal `json:"buying_power"`
}

func (c *RobinhoodClient) Account(ctx context.Context) (Account, error) {
	var acct rhAccount
	if err := c.do(ctx, http.MethodGet, rhAccountsPath, nil, &acct); err != nil {
		return Account{}, err
	}
	c.log.Debug().Str("buying_power", acct.BuyingPower.String()).Msg("account fetched")
	return Account{BuyingPower: acct.BuyingPower}, nil
}

type rhHoldingsPage struct {
	Next    string `json:"next"`
	Results []struct {
		AssetCode     string          `json:"asset_code"`
		TotalQuantity decimal.Decimal `json:"total_quantity"`
	} `json:"results"`
}

func (c *RobinhoodClient) Holdings(ctx context.Context) ([]Holding, error) {
	var holdings []Holding
	path := rhHoldingsPath
	for path != "" {
		var page rhHoldingsPage
		if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}
		for _, r := range page.Results {
			holdings = append(holdings, Holding{AssetCode: r.AssetCode, Quantity: r.TotalQuantity})
		}
		path = ""
		if page.Next != "" {
			next, err := url.Parse(page.Next)
			if err != nil {
				return nil, tradeerr.Transient("list holdings", fmt.Errorf("bad next cursor: %w", err))
			}
			path = next.RequestURI()
		}
	}
	return holdings, nil
}

type rhQuotes struct {
	Results []struct {
		Symbol string          `json:"symbol"`
		Bid    decimal.Decimal `json:"bid_inclusive_of_sell_spread"`
		Ask    decimal.Decimal `json:"ask_inclusive_of_buy_spread"`
	} `json:"results"`
}

func (c *RobinhoodClient) BestBidAsk(ctx context.Context, symbol string) (Quote, error) {
	var quotes rhQuotes
	path := rhQuotePath + "?" + url.Values{"symbol": {symbol}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &quotes); err != nil {
		return Quote{}, err
	}
	if len(quotes.Results) == 0 {
		return Quote{}, tradeerr.Transient("best bid ask", fmt.Errorf("no quote for %s", symbol))
	}
	r := quotes.Results[0]
	return Quote{Symbol: symbol, Bid: r.Bid, Ask: r.Ask}, nil
}

type rhOrderRequest struct {
	ClientOrderID     string `json:"client_order_id"`
	Side              string `json:"side"`
	Type              string `json:"type"`
	Symbol            string `json:"symbol"`
	MarketOrderConfig struct {
		AssetQuantity decimal.Decimal `json:"asset_quantity"`
	} `json:"market_order_config"`
}

type rhOrder struct {
	ID            string `json:"id"`
	ClientOrderID string `json:"client_order_id"`
	State         string `json:"state"`
}

func (c *RobinhoodClient) PlaceOrder(ctx context.Context, req OrderRequest) (OrderRef, error) {
	if err := req.Validate(); err != nil {
		return OrderRef{}, tradeerr.Invariantf("place order", "%v", err)
	}
	payload := rhOrderRequest{
		ClientOrderID: req.ClientOrderID,
		Side:          string(req.Side),
		Type:          string(req.Type),
		Symbol:        req.Symbol,
	}
	payload.MarketOrderConfig.AssetQuantity = req.Quantity

	var order rhOrder
	if err := c.do(ctx, http.MethodPost, rhOrdersPath, payload, &order); err != nil {
		c.log.Error().Err(err).Str("side", string(req.Side)).Str("symbol", req.Symbol).Str("qty", req.Quantity.String()).Msg("place order failed")
		return OrderRef{}, err
	}
	c.log.Info().Str("order_id", order.ID).Str("side", string(req.Side)).Str("symbol", req.Symbol).
		Str("qty", req.Quantity.String()).Str("state", order.State).Msg("place order success")
	return OrderRef{ID: order.ID, ClientOrderID: order.ClientOrderID, Status: order.State}, nil
}
