package calculator

// EMA computes the exponential moving average of prices. The first defined
// point is at index span-1 and equals the simple mean of the first span
// samples; every later point moves toward the input by 2/(span+1).
func EMA(prices []float64, span int) Series {
	return EMASeries(FromFloats(prices), span)
}

// EMASeries is EMA over a series that may start with undefined points, as the
// MACD line does. Seeding begins at the first defined input; an undefined
// point after that restarts the seed.
func EMASeries(in Series, span int) Series {
	out := undefined(len(in))
	if span <= 0 {
		return out
	}
	k := 2.0 / float64(span+1)

	var (
		seedSum float64
		seedN   int
		prev    float64
		seeded  bool
	)
	for i, v := range in {
		if !v.Valid {
			seedSum, seedN, seeded = 0, 0, false
			continue
		}
		if !seeded {
			seedSum += v.V
			seedN++
			if seedN == span {
				prev = seedSum / float64(span)
				seeded = true
				out[i] = Value{V: prev, Valid: true}
			}
			continue
		}
		prev += k * (v.V - prev)
		out[i] = Value{V: prev, Valid: true}
	}
	return out
}
