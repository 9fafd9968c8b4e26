package risk

import (
	"errors"
	"fmt"

	"sigtrade/internal/state"
)

type Reason string

const (
	ReasonNone        Reason = ""
	ReasonEquityFloor Reason = "equity_floor"
	ReasonStopLoss    Reason = "stop_loss"
	ReasonTakeProfit  Reason = "take_profit"
)

// Monitor decides whether an open position must be closed regardless of
// what the indicators say.
type Monitor struct {
	EquityFloor float64
}

// Check returns the first threshold the position has tripped, or ReasonNone.
// Closed positions never trip.
func (m Monitor) Check(position state.Position, price, equity float64) Reason {
	if !position.Active() {
		return ReasonNone
	}
	switch {
	case equity <= m.EquityFloor:
		return ReasonEquityFloor
	case price <= position.StopLossPrice:
		return ReasonStopLoss
	case price >= position.TakeProfitPrice:
		return ReasonTakeProfit
	}
	return ReasonNone
}

var (
	ErrInsufficientBuyingPower = errors.New("risk amount exceeds buying power")
	ErrZeroSize                = errors.New("computed order size is not positive")
)

// Sizer turns account equity into an order size and protective levels.
type Sizer struct {
	RiskFraction  float64
	Confidence    float64
	StopLossPct   float64
	TakeProfitPct float64
}

type Sizing struct {
	RiskAmount      float64
	Size            float64
	StopLossPrice   float64
	TakeProfitPrice float64
}

// Size computes risk = equity * fraction * confidence and size = risk / price.
// It refuses the trade when risk exceeds buying power; the returned Sizing
// still carries the risk amount for reporting.
func (s Sizer) Size(equity, buyingPower, price float64) (Sizing, error) {
	if price <= 0 {
		return Sizing{}, fmt.Errorf("price must be positive, got %v", price)
	}
	sizing := Sizing{RiskAmount: equity * s.RiskFraction * s.Confidence}
	if sizing.RiskAmount > buyingPower {
		return sizing, ErrInsufficientBuyingPower
	}
	if sizing.RiskAmount <= 0 {
		return sizing, ErrZeroSize
	}
	sizing.Size = sizing.RiskAmount / price
	sizing.StopLossPrice, sizing.TakeProfitPrice = s.Levels(price)
	return sizing, nil
}

func (s Sizer) Levels(price float64) (stopLoss, takeProfit float64) {
	return price * (1 - s.StopLossPct), price * (1 + s.TakeProfitPct)
}
