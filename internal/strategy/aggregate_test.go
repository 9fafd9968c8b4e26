package strategy

import (
	"errors"
	"math"
	"testing"

	"sigtrade/internal/tradeerr"
)

func TestAggregateWeightedScoreHolds(t *testing.T) {
	weights := map[string]float64{NameMACD: 0.4, NameMVCD: 0.3, NameVWAP: 0.2, NameTEMA: 0.1}
	signals := map[string]Action{NameMACD: Buy, NameMVCD: Sell, NameVWAP: Hold, NameTEMA: Buy}

	decision, err := Aggregate(signals, weights, DefaultBuyThreshold, DefaultSellThreshold)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(decision.Score-0.2) > 1e-9 {
		t.Fatalf("expected score 0.2, got %v", decision.Score)
	}
	if decision.Action != Hold {
		t.Fatalf("expected HOLD, got %s", decision.Action)
	}
}

func TestAggregateBuyAndSell(t *testing.T) {
	weights := map[string]float64{NameMACD: 1, NameMVCD: 1, NameVWAP: 1, NameTEMA: 1}

	buy, err := Aggregate(map[string]Action{NameMACD: Buy, NameMVCD: Buy, NameVWAP: Buy, NameTEMA: Hold}, weights, 0.5, -0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buy.Action != Buy || buy.Score != 0.75 {
		t.Fatalf("expected BUY at 0.75, got %s at %v", buy.Action, buy.Score)
	}

	sell, _ := Aggregate(map[string]Action{NameMACD: Sell, NameMVCD: Sell, NameVWAP: Sell, NameTEMA: Sell}, weights, 0.5, -0.5)
	if sell.Action != Sell || sell.Score != -1 {
		t.Fatalf("expected SELL at -1, got %s at %v", sell.Action, sell.Score)
	}

	edge, _ := Aggregate(map[string]Action{NameMACD: Buy, NameMVCD: Buy}, weights, 0.5, -0.5)
	if edge.Action != Hold {
		t.Fatalf("score equal to threshold must hold, got %s", edge.Action)
	}
}

func TestAggregateRejectsNonPositiveTotalWeight(t *testing.T) {
	signals := map[string]Action{NameMACD: Buy}
	for _, weights := range []map[string]float64{
		{},
		{NameMACD: 0, NameTEMA: 0},
	} {
		if _, err := Aggregate(signals, weights, 0.5, -0.5); !errors.Is(err, tradeerr.ErrConfiguration) {
			t.Fatalf("expected configuration error for %v, got %v", weights, err)
		}
	}
	if _, err := NewAggregator(map[string]float64{NameMACD: -1, NameTEMA: 2}, 0.5, -0.5); !errors.Is(err, tradeerr.ErrConfiguration) {
		t.Fatalf("expected configuration error for negative weight, got %v", err)
	}
}

func TestAggregateRejectsInvalidThresholds(t *testing.T) {
	weights := map[string]float64{NameMACD: 1}
	cases := [][2]float64{{0.2, 0.4}, {1.5, -0.5}, {0.5, -1.5}, {math.NaN(), 0}}
	for _, c := range cases {
		if _, err := NewAggregator(weights, c[0], c[1]); !errors.Is(err, tradeerr.ErrConfiguration) {
			t.Fatalf("expected configuration error for thresholds %v, got %v", c, err)
		}
	}
}

func TestAggregateIsDeterministic(t *testing.T) {
	weights := map[string]float64{NameMACD: 0.1, NameMVCD: 0.7, NameVWAP: 0.13, NameTEMA: 0.07, "RSI": 0.3}
	signals := map[string]Action{NameMACD: Buy, NameMVCD: Sell, NameVWAP: Buy, NameTEMA: Buy, "RSI": Sell}
	agg, err := NewAggregator(weights, 0.5, -0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := agg.Aggregate(signals)
	for i := 0; i < 50; i++ {
		if got := agg.Aggregate(signals); got != first {
			t.Fatalf("aggregate changed between calls: %+v vs %+v", got, first)
		}
	}
	if first.Score < -1 || first.Score > 1 {
		t.Fatalf("score out of range: %v", first.Score)
	}
}

func TestAggregatorCopiesWeights(t *testing.T) {
	weights := map[string]float64{NameMACD: 1}
	agg, err := NewAggregator(weights, 0.5, -0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	weights[NameMACD] = 0
	if got := agg.Aggregate(map[string]Action{NameMACD: Buy}); got.Action != Buy {
		t.Fatalf("expected aggregator to keep its own weights, got %s", got.Action)
	}
}

func TestAggregatorCoversIndicatorNames(t *testing.T) {
	agg, err := NewAggregator(map[string]float64{NameMACD: 1, NameVWAP: 1}, DefaultBuyThreshold, DefaultSellThreshold)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := agg.Covers(Names()); err != nil {
		t.Fatalf("known weights rejected: %v", err)
	}

	typo, err := NewAggregator(map[string]float64{"macd": 1, "vwap": 1}, DefaultBuyThreshold, DefaultSellThreshold)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := typo.Covers(Names()); !errors.Is(err, tradeerr.ErrConfiguration) {
		t.Fatalf("expected configuration error for unknown weight keys, got %v", err)
	}
	engine := NewEngine(NewVWAP(20))
	if err := agg.Covers(engine.Names()); !errors.Is(err, tradeerr.ErrConfiguration) {
		t.Fatalf("expected configuration error for weight with no built indicator, got %v", err)
	}
}
