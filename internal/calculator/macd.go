package calculator

// MACD returns the MACD line (fast EMA minus slow EMA) and its signal line
// (EMA of the MACD line). Both stay undefined until enough history exists.
func MACD(closes []float64, fast, slow, signal int) (line, signalLine Series) {
	fastEMA := EMA(closes, fast)
	slowEMA := EMA(closes, slow)

	line = undefined(len(closes))
	for i := range closes {
		f, s := fastEMA[i], slowEMA[i]
		if f.Valid && s.Valid {
			line[i] = Value{V: f.V - s.V, Valid: true}
		}
	}
	return line, EMASeries(line, signal)
}
