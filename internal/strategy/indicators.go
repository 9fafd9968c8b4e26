package strategy

import (
	"math"

	"sigtrade/internal/md"
)

const (
	NameMACD = "MACD"
	NameMVCD = "MVCD"
	NameVWAP = "VWAP"
	NameTEMA = "TEMA"
)

// Names lists the built-in indicators.
func Names() []string {
	return []string{NameMACD, NameMVCD, NameVWAP, NameTEMA}
}

// NewMACD compares fast-minus-slow EMA of closes against its signal EMA.
func NewMACD(fast, slow, signal int) Indicator {
	trend := func(bars []md.Bar) []float64 {
		closes := md.Closes(bars)
		return subtract(EMA(closes, fast), EMA(closes, slow))
	}
	return dualCurve{
		name:      NameMACD,
		minBars:   maxSpan(fast, slow, signal) + 1,
		line:      trend,
		reference: func(bars []md.Bar) []float64 { return EMA(trend(bars), signal) },
	}
}

// NewMVCD is the volatility analogue of MACD: fast-minus-slow exponentially
// weighted standard deviation of closes against its signal EMA.
func NewMVCD(fast, slow, signal int) Indicator {
	volatility := func(bars []md.Bar) []float64 {
		closes := md.Closes(bars)
		return subtract(EWStd(closes, fast), EWStd(closes, slow))
	}
	return dualCurve{
		name:      NameMVCD,
		minBars:   maxSpan(fast, slow, signal) + 1,
		line:      volatility,
		reference: func(bars []md.Bar) []float64 { return EMA(volatility(bars), signal) },
	}
}

// NewVWAP compares close against the rolling volume weighted typical price.
func NewVWAP(window int) Indicator {
	return dualCurve{
		name:      NameVWAP,
		minBars:   window + 1,
		line:      closeCurve,
		reference: func(bars []md.Bar) []float64 { return RollingVWAP(bars, window) },
	}
}

// NewTEMA compares close against the triple exponential moving average.
func NewTEMA(window int) Indicator {
	return dualCurve{
		name:      NameTEMA,
		minBars:   window + 1,
		line:      closeCurve,
		reference: func(bars []md.Bar) []float64 { return TEMA(md.Closes(bars), window) },
	}
}

func TEMA(values []float64, window int) []float64 {
	ema1 := EMA(values, window)
	ema2 := EMA(ema1, window)
	ema3 := EMA(ema2, window)
	out := make([]float64, len(values))
	for i := range values {
		out[i] = 3*(ema1[i]-ema2[i]) + ema3[i]
	}
	return out
}

// RollingVWAP is NaN until window bars are available and wherever the
// window carries no volume.
func RollingVWAP(bars []md.Bar, window int) []float64 {
	out := make([]float64, len(bars))
	var pv, vol float64
	for i, bar := range bars {
		typical := (bar.High + bar.Low + bar.Close) / 3
		pv += typical * bar.Volume
		vol += bar.Volume
		if i >= window {
			old := bars[i-window]
			pv -= (old.High + old.Low + old.Close) / 3 * old.Volume
			vol -= old.Volume
		}
		if i < window-1 || vol <= 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = pv / vol
	}
	return out
}

func maxSpan(spans ...int) int {
	m := 0
	for _, s := range spans {
		if s > m {
			m = s
		}
	}
	return m
}
