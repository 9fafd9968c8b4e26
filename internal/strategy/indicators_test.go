package strategy

import (
	"math"
	"testing"
	"time"

	"sigtrade/internal/md"
)

func series(closes ...float64) []md.Bar {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]md.Bar, len(closes))
	for i, c := range closes {
		bars[i] = md.Bar{
			Timestamp: base.Add(time.Duration(i) * 24 * time.Hour),
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    1,
		}
	}
	return bars
}

func flatThen(n int, flat float64, tail ...float64) []md.Bar {
	closes := make([]float64, 0, n+len(tail))
	for i := 0; i < n; i++ {
		closes = append(closes, flat)
	}
	return series(append(closes, tail...)...)
}

func TestIndicatorsHoldOnShortSeries(t *testing.T) {
	short := series(100, 101, 102, 103, 104)
	for _, ind := range []Indicator{
		NewMACD(20, 30, 10),
		NewMVCD(20, 30, 10),
		NewVWAP(20),
		NewTEMA(20),
	} {
		if got := ind.Signal(short); got != Hold {
			t.Fatalf("%s: expected HOLD on short series, got %s", ind.Name(), got)
		}
		if got := ind.Signal(nil); got != Hold {
			t.Fatalf("%s: expected HOLD on empty series, got %s", ind.Name(), got)
		}
	}
}

func TestMACDCrossovers(t *testing.T) {
	macd := NewMACD(3, 6, 3)
	if got := macd.Signal(flatThen(10, 100, 110)); got != Buy {
		t.Fatalf("expected BUY on upward jump, got %s", got)
	}
	if got := macd.Signal(flatThen(10, 100, 90)); got != Sell {
		t.Fatalf("expected SELL on downward jump, got %s", got)
	}
	if got := macd.Signal(flatThen(11, 100)); got != Hold {
		t.Fatalf("expected HOLD on flat series, got %s", got)
	}
}

func TestMVCDCrossovers(t *testing.T) {
	mvcd := NewMVCD(3, 6, 3)
	if got := mvcd.Signal(flatThen(10, 100, 110)); got != Buy {
		t.Fatalf("expected BUY when volatility expands, got %s", got)
	}
	if got := mvcd.Signal(flatThen(10, 100, 110, 110)); got != Sell {
		t.Fatalf("expected SELL when short volatility fades, got %s", got)
	}
	if got := mvcd.Signal(flatThen(11, 100)); got != Hold {
		t.Fatalf("expected HOLD on flat series, got %s", got)
	}
}

func TestVWAPCrossovers(t *testing.T) {
	vwap := NewVWAP(3)
	if got := vwap.Signal(flatThen(5, 100, 110)); got != Buy {
		t.Fatalf("expected BUY when close crosses above VWAP, got %s", got)
	}
	if got := vwap.Signal(flatThen(5, 100, 90)); got != Sell {
		t.Fatalf("expected SELL when close crosses below VWAP, got %s", got)
	}
	if got := vwap.Signal(series(100, 100, 100)); got != Hold {
		t.Fatalf("expected HOLD at exactly window bars, got %s", got)
	}
}

func TestTEMACrossovers(t *testing.T) {
	tema := NewTEMA(3)
	if got := tema.Signal(flatThen(10, 100, 110)); got != Buy {
		t.Fatalf("expected BUY when close crosses above TEMA, got %s", got)
	}
	if got := tema.Signal(flatThen(10, 100, 90)); got != Sell {
		t.Fatalf("expected SELL when close crosses below TEMA, got %s", got)
	}
}

func TestIndicatorsAreIdempotent(t *testing.T) {
	bars := flatThen(30, 100, 104, 97, 111, 108)
	snapshot := make([]md.Bar, len(bars))
	copy(snapshot, bars)

	engine := NewEngine(NewMACD(3, 6, 3), NewMVCD(3, 6, 3), NewVWAP(3), NewTEMA(3))
	first := engine.Evaluate(bars)
	second := engine.Evaluate(bars)
	for name, sig := range first {
		if second[name] != sig {
			t.Fatalf("%s changed between calls: %s vs %s", name, sig, second[name])
		}
	}
	for i := range bars {
		if bars[i] != snapshot[i] {
			t.Fatalf("input series was mutated at %d", i)
		}
	}
	if len(first) != 4 {
		t.Fatalf("expected four distinct indicator signals, got %d", len(first))
	}
}

func TestEMAAndVWAPValues(t *testing.T) {
	ema := EMA([]float64{math.NaN(), 10, 20}, 3)
	if !math.IsNaN(ema[0]) || ema[1] != 10 || ema[2] != 15 {
		t.Fatalf("unexpected EMA values %v", ema)
	}

	bars := []md.Bar{
		{High: 12, Low: 6, Close: 9, Volume: 1},
		{High: 12, Low: 6, Close: 12, Volume: 3},
		{High: 18, Low: 12, Close: 15, Volume: 1},
	}
	vwap := RollingVWAP(bars, 2)
	if !math.IsNaN(vwap[0]) {
		t.Fatalf("expected NaN during warm-up, got %v", vwap[0])
	}
	if vwap[1] != 9.75 {
		t.Fatalf("expected 9.75, got %v", vwap[1])
	}
	if vwap[2] != 11.25 {
		t.Fatalf("expected 11.25, got %v", vwap[2])
	}

	std := EWStd([]float64{5, 5, 5}, 3)
	if !math.IsNaN(std[0]) || std[1] != 0 || std[2] != 0 {
		t.Fatalf("unexpected std for constant series %v", std)
	}
}

func TestCrossoverPrimitive(t *testing.T) {
	if got := Crossover([]float64{1, 3}, []float64{2, 2}); got != Buy {
		t.Fatalf("expected BUY, got %s", got)
	}
	if got := Crossover([]float64{2, 1}, []float64{2, 2}); got != Sell {
		t.Fatalf("expected SELL from equality, got %s", got)
	}
	if got := Crossover([]float64{3, 4}, []float64{2, 2}); got != Hold {
		t.Fatalf("expected HOLD without cross, got %s", got)
	}
	if got := Crossover([]float64{math.NaN(), 4}, []float64{2, 2}); got != Hold {
		t.Fatalf("expected HOLD with NaN, got %s", got)
	}
	if got := Crossover([]float64{4}, []float64{2}); got != Hold {
		t.Fatalf("expected HOLD with one point, got %s", got)
	}
}

func TestParseAction(t *testing.T) {
	if a, err := ParseAction("buy"); err != nil || a != Buy {
		t.Fatalf("expected BUY, got %s %v", a, err)
	}
	if _, err := ParseAction("short"); err == nil {
		t.Fatalf("expected error for unknown action")
	}
}
