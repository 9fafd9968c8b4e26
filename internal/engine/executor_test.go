package engine

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"

	"sigtrade/internal/risk"
	"sigtrade/internal/state"
	"sigtrade/internal/strategy"
	"sigtrade/internal/tradeerr"
)

func testSizer(confidence float64) risk.Sizer {
	return risk.Sizer{RiskFraction: 0.01, Confidence: confidence, StopLossPct: 0.02, TakeProfitPct: 0.05}
}

func TestExecutorOpensSizedPosition(t *testing.T) {
	ctx := context.Background()
	fb := &fakeBroker{buyingPower: 10000}
	store := newMemStore()
	x := NewExecutor(fb, store, testSizer(0.5), zerolog.Nop())

	out, err := x.Execute(ctx, "BTC-USD", strategy.Buy, state.Position{}, false, Market{Price: 60000, Equity: 10000})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out.Result != ResultOpened || out.RiskAmount != 50 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	stored, found, _ := store.Load(ctx, "BTC-USD")
	if !found || stored.Status != state.StatusActive {
		t.Fatalf("expected active stored position, got %+v found=%v", stored, found)
	}
	if math.Abs(stored.Size-50.0/60000.0) > 1e-8 {
		t.Fatalf("unexpected size %v", stored.Size)
	}
	if len(fb.orders) != 1 || fb.orders[0].Quantity.InexactFloat64() != stored.Size {
		t.Fatalf("ordered quantity must equal stored size: %+v", fb.orders)
	}
	if math.Abs(stored.StopLossPrice-58800) > 1e-6 || math.Abs(stored.TakeProfitPrice-63000) > 1e-6 {
		t.Fatalf("unexpected levels: %+v", stored)
	}

	out, err = x.Execute(ctx, "BTC-USD", strategy.Buy, stored, true, Market{Price: 61000, Equity: 10000})
	if err != nil {
		t.Fatalf("second buy: %v", err)
	}
	if out.Result != ResultAlreadyActive || len(fb.orders) != 1 || store.saves != 1 {
		t.Fatalf("second buy must be a no-op: %+v orders=%d saves=%d", out, len(fb.orders), store.saves)
	}
}

func TestExecutorRiskGuard(t *testing.T) {
	fb := &fakeBroker{buyingPower: 10}
	store := newMemStore()
	x := NewExecutor(fb, store, testSizer(0.5), zerolog.Nop())

	out, err := x.Execute(context.Background(), "BTC-USD", strategy.Buy, state.Position{}, false, Market{Price: 60000, Equity: 10000})
	if err != nil {
		t.Fatalf("risk guard is not an error: %v", err)
	}
	if out.Result != ResultRiskGuard || out.RiskAmount != 50 {
		t.Fatalf("expected risk guard, got %+v", out)
	}
	if len(fb.orders) != 0 || store.saves != 0 {
		t.Fatalf("risk guard must not trade or persist")
	}
}

func TestExecutorSellClosesStoredSize(t *testing.T) {
	ctx := context.Background()
	fb := &fakeBroker{buyingPower: 10000}
	store := newMemStore()
	x := NewExecutor(fb, store, testSizer(0.5), zerolog.Nop())
	open := state.Position{Symbol: "BTC-USD", EntryPrice: 60000, Size: 0.25, StopLossPrice: 58800, TakeProfitPrice: 63000, Status: state.StatusActive}

	out, err := x.Execute(ctx, "BTC-USD", strategy.Sell, open, true, Market{Price: 61000})
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if out.Result != ResultClosed {
		t.Fatalf("expected close, got %+v", out)
	}
	if len(fb.orders) != 1 || fb.orders[0].Quantity.InexactFloat64() != 0.25 || fb.orders[0].Side != "sell" {
		t.Fatalf("unexpected sell order: %+v", fb.orders)
	}
	stored, _, _ := store.Load(ctx, "BTC-USD")
	if stored.Status != state.StatusClosed || stored.ExitPrice != 61000 || stored.CloseReason != "signal" {
		t.Fatalf("unexpected closed record: %+v", stored)
	}
}

func TestExecutorNoOps(t *testing.T) {
	ctx := context.Background()
	fb := &fakeBroker{buyingPower: 10000}
	store := newMemStore()
	x := NewExecutor(fb, store, testSizer(0.5), zerolog.Nop())

	out, err := x.Execute(ctx, "BTC-USD", strategy.Sell, state.Position{}, false, Market{Price: 100})
	if err != nil || out.Result != ResultNothingToClose {
		t.Fatalf("sell with nothing to close: %+v %v", out, err)
	}
	closed := state.Position{Symbol: "BTC-USD", Status: state.StatusClosed}
	out, err = x.Execute(ctx, "BTC-USD", strategy.Sell, closed, true, Market{Price: 100})
	if err != nil || out.Result != ResultNothingToClose {
		t.Fatalf("sell on closed record: %+v %v", out, err)
	}
	out, err = x.Execute(ctx, "BTC-USD", strategy.Hold, state.Position{}, false, Market{Price: 100})
	if err != nil || out.Result != ResultHold {
		t.Fatalf("hold: %+v %v", out, err)
	}
	if len(fb.orders) != 0 || store.saves != 0 {
		t.Fatalf("no-ops must not trade or persist")
	}
}

func TestExecutorForceCloseWithoutPosition(t *testing.T) {
	fb := &fakeBroker{}
	store := newMemStore()
	x := NewExecutor(fb, store, testSizer(0.5), zerolog.Nop())

	_, err := x.ForceClose(context.Background(), "BTC-USD", state.Position{}, false, 100, risk.ReasonStopLoss)
	if !errors.Is(err, tradeerr.ErrInvariant) {
		t.Fatalf("expected invariant violation, got %v", err)
	}
	if len(fb.orders) != 0 || store.saves != 0 {
		t.Fatalf("invariant violation must not trade or persist")
	}
}

func TestExecutorOrderFailureLeavesStore(t *testing.T) {
	fb := &fakeBroker{buyingPower: 10000, placeErr: errBoom}
	store := newMemStore()
	x := NewExecutor(fb, store, testSizer(0.5), zerolog.Nop())

	_, err := x.Execute(context.Background(), "BTC-USD", strategy.Buy, state.Position{}, false, Market{Price: 60000, Equity: 10000})
	if !errors.Is(err, tradeerr.ErrTransientIO) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if store.saves != 0 {
		t.Fatalf("failed order must not persist a position")
	}
}

func TestExecutorSaveFailureAfterFill(t *testing.T) {
	fb := &fakeBroker{buyingPower: 10000}
	store := newMemStore()
	store.saveErr = errBoom
	x := NewExecutor(fb, store, testSizer(0.5), zerolog.Nop())

	_, err := x.Execute(context.Background(), "BTC-USD", strategy.Buy, state.Position{}, false, Market{Price: 60000, Equity: 10000})
	if !errors.Is(err, tradeerr.ErrInvariant) {
		t.Fatalf("expected invariant violation, got %v", err)
	}
}

func TestExecutorFreshTokens(t *testing.T) {
	ctx := context.Background()
	fb := &fakeBroker{buyingPower: 10000}
	store := newMemStore()
	x := NewExecutor(fb, store, testSizer(0.5), zerolog.Nop())
	mkt := Market{Price: 100, Equity: 10000}

	for i := 0; i < 2; i++ {
		current, found, _ := store.Load(ctx, "ETH-USD")
		if _, err := x.Execute(ctx, "ETH-USD", strategy.Buy, current, found, mkt); err != nil {
			t.Fatalf("buy %d: %v", i, err)
		}
		current, found, _ = store.Load(ctx, "ETH-USD")
		if _, err := x.Execute(ctx, "ETH-USD", strategy.Sell, current, found, mkt); err != nil {
			t.Fatalf("sell %d: %v", i, err)
		}
	}
	seen := map[string]bool{}
	for _, o := range fb.orders {
		if o.ClientOrderID == "" || seen[o.ClientOrderID] {
			t.Fatalf("client order ids must be unique and non-empty: %+v", fb.orders)
		}
		seen[o.ClientOrderID] = true
	}
	if len(seen) != 4 {
		t.Fatalf("expected 4 orders, got %d", len(seen))
	}
}
