package calculator

import "math"

// TrueRange returns the per-bar true range. Index 0 has no previous close and
// falls back to high-low.
func TrueRange(highs, lows, closes []float64) []float64 {
	n := len(closes)
	if len(highs) != n || len(lows) != n {
		return nil
	}
	tr := make([]float64, n)
	for i := 0; i < n; i++ {
		hl := highs[i] - lows[i]
		if i == 0 {
			tr[i] = hl
			continue
		}
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}
	return tr
}

// ATR computes Wilder's average true range. The first defined point is at
// index period and is the mean of the true ranges at 1..period; later points
// are Wilder-smoothed. Mismatched input lengths yield an all-undefined series.
func ATR(highs, lows, closes []float64, period int) Series {
	out := undefined(len(closes))
	tr := TrueRange(highs, lows, closes)
	if tr == nil || period <= 0 || len(closes) <= period {
		return out
	}

	atr := 0.0
	for i := 1; i <= period; i++ {
		atr += tr[i]
	}
	atr /= float64(period)
	out[period] = Value{V: atr, Valid: true}

	for i := period + 1; i < len(tr); i++ {
		atr = (atr*float64(period-1) + tr[i]) / float64(period)
		out[i] = Value{V: atr, Valid: true}
	}
	return out
}
