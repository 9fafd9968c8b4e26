package strategy

import (
	"fmt"
	"strings"

	"sigtrade/internal/md"
)

type Action string

const (
	Hold Action = "HOLD"
	Buy  Action = "BUY"
	Sell Action = "SELL"
)

func ParseAction(value string) (Action, error) {
	switch Action(strings.ToUpper(value)) {
	case Hold:
		return Hold, nil
	case Buy:
		return Buy, nil
	case Sell:
		return Sell, nil
	default:
		return "", fmt.Errorf("unknown action: %s", value)
	}
}

// Vote maps an action onto the aggregation scale.
func (a Action) Vote() float64 {
	switch a {
	case Buy:
		return 1
	case Sell:
		return -1
	default:
		return 0
	}
}

// Indicator turns a price series into a directional signal. Implementations
// must be pure: the result depends only on the bars passed in.
type Indicator interface {
	Name() string
	MinBars() int
	Signal(bars []md.Bar) Action
}

// Engine evaluates a fixed set of indicators over one series.
type Engine struct {
	indicators []Indicator
}

func NewEngine(indicators ...Indicator) Engine {
	return Engine{indicators: indicators}
}

func (e Engine) Evaluate(bars []md.Bar) map[string]Action {
	signals := make(map[string]Action, len(e.indicators))
	for _, ind := range e.indicators {
		signals[ind.Name()] = ind.Signal(bars)
	}
	return signals
}

func (e Engine) Names() []string {
	names := make([]string, 0, len(e.indicators))
	for _, ind := range e.indicators {
		names = append(names, ind.Name())
	}
	return names
}
