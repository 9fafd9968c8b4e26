package broker

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceFunc supplies the mark used for paper fills.
type PriceFunc func(ctx context.Context, symbol string) (float64, error)

// PaperBroker fills market orders immediately at the supplied price against
// virtual cash. Orders are deduplicated by client order id.
type PaperBroker struct {
	mu       sync.Mutex
	cash     decimal.Decimal
	holdings map[string]decimal.Decimal
	orders   map[string]OrderRef
	price    PriceFunc
}

func NewPaper(startingCash float64, price PriceFunc) *PaperBroker {
	return &PaperBroker{
		cash:     decimal.NewFromFloat(startingCash),
		holdings: make(map[string]decimal.Decimal),
		orders:   make(map[string]OrderRef),
		price:    price,
	}
}

func (p *PaperBroker) Account(ctx context.Context) (Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Account{BuyingPower: p.cash}, nil
}

func (p *PaperBroker) Holdings(ctx context.Context) ([]Holding, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	holdings := make([]Holding, 0, len(p.holdings))
	for asset, qty := range p.holdings {
		holdings = append(holdings, Holding{AssetCode: asset, Quantity: qty})
	}
	sort.Slice(holdings, func(i, j int) bool { return holdings[i].AssetCode < holdings[j].AssetCode })
	return holdings, nil
}

func (p *PaperBroker) BestBidAsk(ctx context.Context, symbol string) (Quote, error) {
	price, err := p.price(ctx, symbol)
	if err != nil {
		return Quote{}, err
	}
	d := decimal.NewFromFloat(price)
	return Quote{Symbol: symbol, Bid: d, Ask: d}, nil
}

func (p *PaperBroker) PlaceOrder(ctx context.Context, req OrderRequest) (OrderRef, error) {
	if err := req.Validate(); err != nil {
		return OrderRef{}, err
	}
	p.mu.Lock()
	if ref, ok := p.orders[req.ClientOrderID]; ok {
		p.mu.Unlock()
		return ref, nil
	}
	p.mu.Unlock()

	price, err := p.price(ctx, req.Symbol)
	if err != nil {
		return OrderRef{}, err
	}
	if price <= 0 {
		return OrderRef{}, fmt.Errorf("price must be positive, got %v", price)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	asset := assetCode(req.Symbol)
	held := p.holdings[asset]
	notional := req.Quantity.Mul(decimal.NewFromFloat(price))

	switch req.Side {
	case SideBuy:
		if notional.GreaterThan(p.cash) {
			return OrderRef{}, fmt.Errorf("insufficient cash for buy: need %s, have %s", notional.StringFixed(2), p.cash.StringFixed(2))
		}
		p.cash = p.cash.Sub(notional)
		p.holdings[asset] = held.Add(req.Quantity)
	case SideSell:
		if held.LessThan(req.Quantity) {
			return OrderRef{}, fmt.Errorf("insufficient %s to sell: have %s", asset, held)
		}
		p.cash = p.cash.Add(notional)
		if left := held.Sub(req.Quantity); left.IsZero() {
			delete(p.holdings, asset)
		} else {
			p.holdings[asset] = left
		}
	}

	ref := OrderRef{ID: uuid.NewString(), ClientOrderID: req.ClientOrderID, Status: "filled"}
	p.orders[req.ClientOrderID] = ref
	return ref, nil
}
