package strategy

import (
	"math"
	"sort"

	"sigtrade/internal/tradeerr"
)

const (
	DefaultBuyThreshold  = 0.5
	DefaultSellThreshold = -0.5
)

type Decision struct {
	Action Action
	Score  float64
}

type Aggregator struct {
	weights map[string]float64
	names   []string
	total   float64
	buy     float64
	sell    float64
}

// NewAggregator validates weights and thresholds once so that Aggregate
// cannot fail at tick time.
func NewAggregator(weights map[string]float64, buyThreshold, sellThreshold float64) (*Aggregator, error) {
	if err := ValidateThresholds(buyThreshold, sellThreshold); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(weights))
	copied := make(map[string]float64, len(weights))
	for name, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return nil, tradeerr.Configf("weight for %s must be a non-negative number, got %v", name, w)
		}
		names = append(names, name)
		copied[name] = w
	}
	// fixed summation order keeps the score independent of map iteration
	sort.Strings(names)

	total := 0.0
	for _, name := range names {
		total += copied[name]
	}
	if total <= 0 {
		return nil, tradeerr.Configf("total indicator weight must be positive, got %v", total)
	}

	return &Aggregator{weights: copied, names: names, total: total, buy: buyThreshold, sell: sellThreshold}, nil
}

// Covers rejects weights keyed by a name that is not in names.
func (a *Aggregator) Covers(names []string) error {
	known := make(map[string]struct{}, len(names))
	for _, n := range names {
		known[n] = struct{}{}
	}
	for _, name := range a.names {
		if _, ok := known[name]; !ok {
			return tradeerr.Configf("weight %q matches no indicator (have %v)", name, names)
		}
	}
	return nil
}

func ValidateThresholds(buy, sell float64) error {
	if math.IsNaN(buy) || math.IsNaN(sell) {
		return tradeerr.Configf("thresholds must be numbers")
	}
	if buy > 1 || sell < -1 || sell > buy {
		return tradeerr.Configf("thresholds must satisfy -1 <= sell (%v) <= buy (%v) <= 1", sell, buy)
	}
	return nil
}

// Aggregate scores signals as the weighted mean of their votes. Signals
// without a weight contribute nothing; weights without a signal still count
// toward the total.
func (a *Aggregator) Aggregate(signals map[string]Action) Decision {
	sum := 0.0
	for _, name := range a.names {
		if sig, ok := signals[name]; ok {
			sum += a.weights[name] * sig.Vote()
		}
	}
	score := sum / a.total

	switch {
	case score > a.buy:
		return Decision{Action: Buy, Score: score}
	case score < a.sell:
		return Decision{Action: Sell, Score: score}
	default:
		return Decision{Action: Hold, Score: score}
	}
}

func Aggregate(signals map[string]Action, weights map[string]float64, buyThreshold, sellThreshold float64) (Decision, error) {
	agg, err := NewAggregator(weights, buyThreshold, sellThreshold)
	if err != nil {
		return Decision{}, err
	}
	return agg.Aggregate(signals), nil
}
