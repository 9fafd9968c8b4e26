package broker

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"sigtrade/internal/tradeerr"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

type OrderType string

const OrderMarket OrderType = "market"

type Account struct {
	BuyingPower decimal.Decimal
}

type Holding struct {
	AssetCode string
	Quantity  decimal.Decimal
}

type Quote struct {
	Symbol string
	Bid    decimal.Decimal
	Ask    decimal.Decimal
}

type OrderRequest struct {
	ClientOrderID string
	Side          Side
	Type          OrderType
	Symbol        string
	Quantity      decimal.Decimal
}

type OrderRef struct {
	ID            string
	ClientOrderID string
	Status        string
}

// Broker is the exchange surface the bot trades through. Any method may fail
// with a transient error; callers treat a failed PlaceOrder as not filled.
type Broker interface {
	Account(ctx context.Context) (Account, error)
	Holdings(ctx context.Context) ([]Holding, error)
	BestBidAsk(ctx context.Context, symbol string) (Quote, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderRef, error)
}

func (r OrderRequest) Validate() error {
	if r.ClientOrderID == "" {
		return fmt.Errorf("client order id is required")
	}
	if r.Side != SideBuy && r.Side != SideSell {
		return fmt.Errorf("invalid order side: %q", r.Side)
	}
	if r.Type != OrderMarket {
		return fmt.Errorf("unsupported order type: %q", r.Type)
	}
	if r.Symbol == "" {
		return fmt.Errorf("order symbol is required")
	}
	if !r.Quantity.IsPositive() {
		return fmt.Errorf("order quantity must be positive, got %s", r.Quantity)
	}
	return nil
}

// BidPrice is the price used for sizing and risk checks.
func BidPrice(ctx context.Context, b Broker, symbol string) (float64, error) {
	q, err := b.BestBidAsk(ctx, symbol)
	if err != nil {
		return 0, err
	}
	bid := q.Bid.InexactFloat64()
	if bid <= 0 {
		return 0, tradeerr.Transient("best bid", fmt.Errorf("no positive bid for %s", symbol))
	}
	return bid, nil
}

// AccountValue is buying power plus every holding marked at the bid of
// <asset>-USD.
func AccountValue(ctx context.Context, b Broker) (float64, error) {
	acct, err := b.Account(ctx)
	if err != nil {
		return 0, err
	}
	holdings, err := b.Holdings(ctx)
	if err != nil {
		return 0, err
	}

	total := acct.BuyingPower
	for _, h := range holdings {
		if h.Quantity.IsZero() || strings.EqualFold(h.AssetCode, "USD") {
			continue
		}
		q, err := b.BestBidAsk(ctx, UsdSymbol(h.AssetCode))
		if err != nil {
			return 0, err
		}
		total = total.Add(h.Quantity.Mul(q.Bid))
	}
	return total.InexactFloat64(), nil
}

func UsdSymbol(asset string) string {
	return strings.ToUpper(asset) + "-USD"
}

// assetCode turns "BTC-USD", "BTC/USD" or "BTCUSD" into "BTC".
func assetCode(symbol string) string {
	s := strings.ToUpper(symbol)
	if i := strings.IndexAny(s, "-/"); i > 0 {
		return s[:i]
	}
	if len(s) > 3 && strings.HasSuffix(s, "USD") {
		return strings.TrimSuffix(s, "USD")
	}
	return s
}
