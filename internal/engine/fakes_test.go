package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"sigtrade/internal/broker"
	"sigtrade/internal/md"
	"sigtrade/internal/state"
	"sigtrade/internal/strategy"
)

type fakeBroker struct {
	mu          sync.Mutex
	buyingPower float64
	holdings    []broker.Holding
	bid         float64
	bidErr      error
	placeErr    error
	orders      []broker.OrderRequest
}

func (f *fakeBroker) Account(ctx context.Context) (broker.Account, error) {
	return broker.Account{BuyingPower: decimal.NewFromFloat(f.buyingPower)}, nil
}

func (f *fakeBroker) Holdings(ctx context.Context) ([]broker.Holding, error) {
	return f.holdings, nil
}

func (f *fakeBroker) BestBidAsk(ctx context.Context, symbol string) (broker.Quote, error) {
	if f.bidErr != nil {
		return broker.Quote{}, f.bidErr
	}
	bid := decimal.NewFromFloat(f.bid)
	return broker.Quote{Symbol: symbol, Bid: bid, Ask: bid}, nil
}

func (f *fakeBroker) PlaceOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.placeErr != nil {
		return broker.OrderRef{}, f.placeErr
	}
	f.orders = append(f.orders, req)
	return broker.OrderRef{ID: "ord-" + req.ClientOrderID, ClientOrderID: req.ClientOrderID, Status: "filled"}, nil
}

type memStore struct {
	mu      sync.Mutex
	records map[string]state.Position
	saves   int
	saveErr error
	loadErr error
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]state.Position)}
}

func (s *memStore) Save(ctx context.Context, p state.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.records[p.Symbol] = p
	s.saves++
	return nil
}

func (s *memStore) Load(ctx context.Context, symbol string) (state.Position, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return state.Position{}, false, s.loadErr
	}
	p, ok := s.records[symbol]
	return p, ok, nil
}

func (s *memStore) Close() error { return nil }

type fakeProvider struct {
	mu    sync.Mutex
	bars  []md.Bar
	err   error
	calls int
}

func (p *fakeProvider) FetchSeries(ctx context.Context, symbol string, start time.Time, timeframe md.Timeframe, limit int) ([]md.Bar, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.bars, nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fixedIndicator struct {
	name   string
	action strategy.Action
}

func (f fixedIndicator) Name() string { return f.name }

func (f fixedIndicator) MinBars() int { return 0 }

func (f fixedIndicator) Signal(bars []md.Bar) strategy.Action { return f.action }

var errBoom = errors.New("boom")
