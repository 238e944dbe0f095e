package strategy

import (
	"fmt"

	"SignalPulse/internal/calculator"
	"SignalPulse/internal/model"
)

// Vote is one factor's contribution. DirectionNone abstains.
type Vote struct {
	Name       string
	Direction  model.Direction
	Commentary string
}

type indicators struct {
	close      float64
	htfEMA     calculator.Value
	emaFast    calculator.Value
	emaSlow    calculator.Value
	rsi        calculator.Series
	macd       calculator.Series
	macdSignal calculator.Series
}

func collectVotes(in indicators) []Vote {
	bias := voteBias(in)
	return []Vote{
		bias,
		voteRSICross(in, bias.Direction),
		voteMACD(in),
		voteEMAStack(in, bias.Direction),
	}
}

func tally(votes []Vote) (up, down int) {
	for _, v := range votes {
		switch v.Direction {
		case model.DirectionBuy:
			up++
		case model.DirectionSell:
			down++
		}
	}
	return up, down
}

// voteBias compares the latest close with the higher timeframe EMA200.
func voteBias(in indicators) Vote {
	v := Vote{Name: "bias"}
	switch {
	case in.close > in.htfEMA.V:
		v.Direction, v.Commentary = model.DirectionBuy, fmt.Sprintf("above htf %.5f", in.htfEMA.V)
	case in.close < in.htfEMA.V:
		v.Direction, v.Commentary = model.DirectionSell, fmt.Sprintf("below htf %.5f", in.htfEMA.V)
	}
	return v
}

// voteRSICross counts an RSI cross of 50 between the prior and latest bar,
// only in the bias direction.
func voteRSICross(in indicators, bias model.Direction) Vote {
	v := Vote{Name: "rsi"}
	prev, cur := in.rsi.Prev(), in.rsi.Last()
	if !prev.Valid || !cur.Valid {
		return v
	}
	switch {
	case bias == model.DirectionBuy && prev.V < 50 && cur.V >= 50:
		v.Direction = model.DirectionBuy
	case bias == model.DirectionSell && prev.V > 50 && cur.V <= 50:
		v.Direction = model.DirectionSell
	}
	v.Commentary = fmt.Sprintf("%.1f->%.1f", prev.V, cur.V)
	return v
}

// voteMACD compares the MACD line with its signal line.
func voteMACD(in indicators) Vote {
	v := Vote{Name: "macd"}
	line, sig := in.macd.Last(), in.macdSignal.Last()
	if !line.Valid || !sig.Valid {
		return v
	}
	switch {
	case line.V > sig.V:
		v.Direction = model.DirectionBuy
	case line.V < sig.V:
		v.Direction = model.DirectionSell
	}
	v.Commentary = fmt.Sprintf("%+.5f", line.V-sig.V)
	return v
}

// voteEMAStack needs the close on the bias side of both EMA20 and EMA50.
func voteEMAStack(in indicators, bias model.Direction) Vote {
	v := Vote{Name: "ema"}
	if !in.emaFast.Valid || !in.emaSlow.Valid {
		return v
	}
	switch {
	case bias == model.DirectionBuy && in.close > in.emaFast.V && in.close > in.emaSlow.V:
		v.Direction = model.DirectionBuy
	case bias == model.DirectionSell && in.close < in.emaFast.V && in.close < in.emaSlow.V:
		v.Direction = model.DirectionSell
	}
	v.Commentary = fmt.Sprintf("%.5f/%.5f", in.emaFast.V, in.emaSlow.V)
	return v
}
