package calculator

import "SignalPulse/internal/model"

// Value is one indicator output point. Valid is false where the indicator is
// undefined because not enough history has accumulated.
type Value struct {
	V     float64
	Valid bool
}

// Series is an indicator output aligned by index with its input.
type Series []Value

func undefined(n int) Series {
	return make(Series, n)
}

// FromFloats wraps raw samples as a fully defined series.
func FromFloats(xs []float64) Series {
	out := make(Series, len(xs))
	for i, x := range xs {
		out[i] = Value{V: x, Valid: true}
	}
	return out
}

// At returns the value at i, undefined when i is out of range.
func (s Series) At(i int) Value {
	if i < 0 || i >= len(s) {
		return Value{}
	}
	return s[i]
}

// Last returns the final point of the series.
func (s Series) Last() Value {
	return s.At(len(s) - 1)
}

// Prev returns the point before the final one.
func (s Series) Prev() Value {
	return s.At(len(s) - 2)
}

// Closes extracts close prices.
func Closes(bars []model.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Highs extracts high prices.
func Highs(bars []model.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.High
	}
	return out
}

// Lows extracts low prices.
func Lows(bars []model.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Low
	}
	return out
}
