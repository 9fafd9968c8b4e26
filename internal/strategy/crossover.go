package strategy

import (
	"math"

	"sigtrade/internal/md"
)

// Curve derives one value per bar from a series.
type Curve func(bars []md.Bar) []float64

// Crossover compares the last two points of line against reference. Buy when
// line moves from <= to > reference, Sell on the opposite move, else Hold.
func Crossover(line, reference []float64) Action {
	n := len(line)
	if n < 2 || len(reference) != n {
		return Hold
	}
	prevLine, curLine := line[n-2], line[n-1]
	prevRef, curRef := reference[n-2], reference[n-1]
	for _, v := range []float64{prevLine, curLine, prevRef, curRef} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Hold
		}
	}

	if curLine > curRef && prevLine <= prevRef {
		return Buy
	}
	if curLine < curRef && prevLine >= prevRef {
		return Sell
	}
	return Hold
}

// dualCurve is the shared shape of every indicator here: two curves built from
// the same series, compared by Crossover, Hold while the series is too short.
type dualCurve struct {
	name      string
	minBars   int
	line      Curve
	reference Curve
}

func (d dualCurve) Name() string { return d.name }

func (d dualCurve) MinBars() int { return d.minBars }

func (d dualCurve) Signal(bars []md.Bar) Action {
	if len(bars) < d.minBars {
		return Hold
	}
	return Crossover(d.line(bars), d.reference(bars))
}

func closeCurve(bars []md.Bar) []float64 {
	return md.Closes(bars)
}
