package strategy

import "math"

func alpha(span int) float64 {
	return 2 / (float64(span) + 1)
}

// EMA is the recursive exponential moving average seeded with the first
// value (no bias adjustment). Leading NaNs stay NaN until the first finite
// value; later NaNs carry the previous average forward.
func EMA(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	a := alpha(span)
	started := false
	prev := math.NaN()
	for i, v := range values {
		switch {
		case math.IsNaN(v):
		case !started:
			prev = v
			started = true
		default:
			prev = a*v + (1-a)*prev
		}
		out[i] = prev
	}
	return out
}

// EWStd is the exponentially weighted standard deviation with the same
// decay as EMA, using the unbiased weighted variance. The first value is
// NaN because a single observation has no spread.
func EWStd(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	a := alpha(span)
	var sumW, sumW2, mean, s float64
	for i, x := range values {
		if i == 0 {
			sumW, sumW2, mean = 1, 1, x
			out[i] = math.NaN()
			continue
		}
		decay := 1 - a
		sumW *= decay
		sumW2 *= decay * decay
		s *= decay

		sumW += a
		sumW2 += a * a
		delta := x - mean
		mean += (a / sumW) * delta
		s += a * delta * (x - mean)

		denom := sumW - sumW2/sumW
		if denom <= 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = math.Sqrt(math.Max(s/denom, 0))
	}
	return out
}

func subtract(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}
