package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"sigtrade/internal/broker"
	"sigtrade/internal/risk"
	"sigtrade/internal/state"
	"sigtrade/internal/strategy"
	"sigtrade/internal/tradeerr"
)

type Result string

const (
	ResultHold           Result = "hold"
	ResultOpened         Result = "opened"
	ResultClosed         Result = "closed"
	ResultAlreadyActive  Result = "noop_active"
	ResultNothingToClose Result = "noop_flat"
	ResultRiskGuard      Result = "risk_guard"
	ResultError          Result = "error"
)

// quantityPlaces is the precision orders are sent with; the stored size
// always equals the ordered quantity.
const quantityPlaces = 8

const closeReasonSignal = "signal"

// Market is the per-tick view the executor decides against.
type Market struct {
	Price  float64
	Equity float64
}

type Outcome struct {
	Result        Result
	Position      state.Position
	RiskAmount    float64
	Size          float64
	OrderID       string
	ClientOrderID string
}

// Executor runs the NoPosition/Active state machine. It places at most one
// order per call and persists the position only after the broker accepts it.
// Once an order is accepted the save ignores cancellation.
type Executor struct {
	broker broker.Broker
	store  state.Store
	sizer  risk.Sizer
	log    zerolog.Logger
	newID  func() string
	now    func() time.Time
}

func NewExecutor(b broker.Broker, store state.Store, sizer risk.Sizer, log zerolog.Logger) *Executor {
	return &Executor{
		broker: b,
		store:  store,
		sizer:  sizer,
		log:    log,
		newID:  uuid.NewString,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Execute applies an aggregated action to the current stored position.
// found=false means no position was ever saved for the symbol.
func (x *Executor) Execute(ctx context.Context, symbol string, action strategy.Action, current state.Position, found bool, mkt Market) (Outcome, error) {
	active := found && current.Active()
	log := x.log.With().Str("symbol", symbol).Str("signal", string(action)).Logger()

	switch action {
	case strategy.Buy:
		if active {
			log.Info().Float64("entry_price", current.EntryPrice).Float64("size", current.Size).Msg("buy ignored, position already active")
			return Outcome{Result: ResultAlreadyActive, Position: current}, nil
		}
		return x.open(ctx, symbol, mkt, log)
	case strategy.Sell:
		if !active {
			log.Info().Msg("sell ignored, nothing to close")
			return Outcome{Result: ResultNothingToClose, Position: current}, nil
		}
		return x.close(ctx, current, mkt.Price, closeReasonSignal, log)
	default:
		return Outcome{Result: ResultHold, Position: current}, nil
	}
}

// ForceClose closes the stored position on behalf of the risk monitor.
// Closing with no active position is a logic fault.
func (x *Executor) ForceClose(ctx context.Context, symbol string, current state.Position, found bool, price float64, reason risk.Reason) (Outcome, error) {
	if !found || !current.Active() {
		return Outcome{Result: ResultError}, tradeerr.Invariantf("force close", "no active position for %s (reason %s)", symbol, reason)
	}
	log := x.log.With().Str("symbol", symbol).Str("signal", string(strategy.Sell)).Str("reason", string(reason)).Logger()
	return x.close(ctx, current, price, string(reason), log)
}

func (x *Executor) open(ctx context.Context, symbol string, mkt Market, log zerolog.Logger) (Outcome, error) {
	acct, err := x.broker.Account(ctx)
	if err != nil {
		return Outcome{Result: ResultError}, classify("fetch account", err)
	}
	buyingPower := acct.BuyingPower.InexactFloat64()

	sizing, err := x.sizer.Size(mkt.Equity, buyingPower, mkt.Price)
	switch {
	case errors.Is(err, risk.ErrInsufficientBuyingPower), errors.Is(err, risk.ErrZeroSize):
		log.Warn().Err(err).Float64("equity", mkt.Equity).Float64("risk_amount", sizing.RiskAmount).
			Float64("buying_power", buyingPower).Msg("buy aborted by risk guard")
		return Outcome{Result: ResultRiskGuard, RiskAmount: sizing.RiskAmount}, nil
	case err != nil:
		return Outcome{Result: ResultError}, tradeerr.Invariantf("size order", "%v", err)
	}

	qty := decimal.NewFromFloat(sizing.Size).Truncate(quantityPlaces)
	if !qty.IsPositive() {
		log.Warn().Float64("risk_amount", sizing.RiskAmount).Float64("price", mkt.Price).Msg("buy aborted, size rounds to zero")
		return Outcome{Result: ResultRiskGuard, RiskAmount: sizing.RiskAmount}, nil
	}
	size := qty.InexactFloat64()

	req := broker.OrderRequest{
		ClientOrderID: x.newID(),
		Side:          broker.SideBuy,
		Type:          broker.OrderMarket,
		Symbol:        symbol,
		Quantity:      qty,
	}
	ref, err := x.broker.PlaceOrder(ctx, req)
	if err != nil {
		log.Error().Err(err).Float64("equity", mkt.Equity).Float64("risk_amount", sizing.RiskAmount).
			Float64("size", size).Float64("price", mkt.Price).Str("client_order_id", req.ClientOrderID).Msg("buy order failed")
		return Outcome{Result: ResultError, RiskAmount: sizing.RiskAmount, Size: size, ClientOrderID: req.ClientOrderID}, classify("place buy order", err)
	}

	position := state.Position{
		Symbol:          symbol,
		EntryPrice:      mkt.Price,
		Size:            size,
		StopLossPrice:   sizing.StopLossPrice,
		TakeProfitPrice: sizing.TakeProfitPrice,
		Status:          state.StatusActive,
		OpenedAt:        x.now(),
		OpenOrderID:     ref.ID,
	}
	outcome := Outcome{
		Result:        ResultOpened,
		Position:      position,
		RiskAmount:    sizing.RiskAmount,
		Size:          size,
		OrderID:       ref.ID,
		ClientOrderID: req.ClientOrderID,
	}
	if err := x.store.Save(context.WithoutCancel(ctx), position); err != nil {
		log.Error().Err(err).Str("order_id", ref.ID).Float64("size", size).Msg("buy filled but position not persisted")
		outcome.Result = ResultError
		return outcome, tradeerr.Invariantf("save position", "order %s accepted but position not stored: %v", ref.ID, err)
	}

	log.Info().Float64("equity", mkt.Equity).Float64("risk_amount", sizing.RiskAmount).Float64("size", size).
		Float64("price", mkt.Price).Float64("stop_loss", position.StopLossPrice).Float64("take_profit", position.TakeProfitPrice).
		Str("order_id", ref.ID).Msg("position opened")
	return outcome, nil
}

func (x *Executor) close(ctx context.Context, current state.Position, price float64, reason string, log zerolog.Logger) (Outcome, error) {
	qty := decimal.NewFromFloat(current.Size)
	req := broker.OrderRequest{
		ClientOrderID: x.newID(),
		Side:          broker.SideSell,
		Type:          broker.OrderMarket,
		Symbol:        current.Symbol,
		Quantity:      qty,
	}
	ref, err := x.broker.PlaceOrder(ctx, req)
	if err != nil {
		log.Error().Err(err).Float64("size", current.Size).Float64("price", price).Str("client_order_id", req.ClientOrderID).Msg("sell order failed")
		return Outcome{Result: ResultError, Position: current, Size: current.Size, ClientOrderID: req.ClientOrderID}, classify("place sell order", err)
	}

	closed := current
	closed.Status = state.StatusClosed
	closed.ClosedAt = x.now()
	closed.ExitPrice = price
	closed.CloseOrderID = ref.ID
	closed.CloseReason = reason
	outcome := Outcome{
		Result:        ResultClosed,
		Position:      closed,
		Size:          current.Size,
		OrderID:       ref.ID,
		ClientOrderID: req.ClientOrderID,
	}
	if err := x.store.Save(context.WithoutCancel(ctx), closed); err != nil {
		log.Error().Err(err).Str("order_id", ref.ID).Msg("sell filled but position not persisted")
		outcome.Result = ResultError
		return outcome, tradeerr.Invariantf("save position", "order %s accepted but close not stored: %v", ref.ID, err)
	}

	log.Info().Float64("entry_price", current.EntryPrice).Float64("exit_price", price).Float64("size", current.Size).
		Str("order_id", ref.ID).Str("reason", reason).Msg("position closed")
	return outcome, nil
}

// classify keeps an adapter's error kind and treats anything unclassified
// as transient.
func classify(op string, err error) error {
	if tradeerr.KindOf(err) != "" {
		return err
	}
	return tradeerr.Transient(op, err)
}
