package strategy

import (
	"fmt"
	"strings"
	"time"

	"SignalPulse/internal/calculator"
	"SignalPulse/internal/model"
)

// Rejection reasons reported in EvaluationResult.Reason.
const (
	ReasonInsufficientHistory = "insufficient history"
	ReasonLowVolatility       = "low volatility (choppy market)"
	ReasonNoHigherTrend       = "higher timeframe EMA200 unavailable"
	ReasonWaitingClose        = "waiting for candle close"
	ReasonNoSide              = "no side"
)

// Params are the evaluator tunables.
type Params struct {
	MinBars     int
	EMAFast     int
	EMASlow     int
	EMATrend    int
	HTFTrend    int
	RSIPeriod   int
	MACDFast    int
	MACDSlow    int
	MACDSignal  int
	ATRPeriod   int
	MinATRRatio float64 // ATR / close below this is treated as no volatility
	CloseOnly   bool
	CloseGrace  time.Duration
	MinVotes    int

	ConfidenceBase float64 // confidence at exactly MinVotes
	ConfidenceStep float64 // added per vote above MinVotes
	ConfidenceCap  float64
}

// DefaultParams returns the stock 20/50/200 EMA, RSI 14, MACD 12/26/9, ATR 14 setup.
func DefaultParams() Params {
	return Params{
		MinBars:        220,
		EMAFast:        20,
		EMASlow:        50,
		EMATrend:       200,
		HTFTrend:       200,
		RSIPeriod:      14,
		MACDFast:       12,
		MACDSlow:       26,
		MACDSignal:     9,
		ATRPeriod:      14,
		MinATRRatio:    0.0001,
		CloseOnly:      true,
		CloseGrace:     5 * time.Second,
		MinVotes:       3,
		ConfidenceBase: 0.70,
		ConfidenceStep: 0.05,
		ConfidenceCap:  0.95,
	}
}

// Evaluator turns a PriceSeries into a directional vote.
type Evaluator struct {
	p   Params
	now func() time.Time
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(p Params) *Evaluator {
	return &Evaluator{p: p, now: time.Now}
}

// WithClock replaces the wall clock, for tests.
func (e *Evaluator) WithClock(now func() time.Time) *Evaluator {
	e.now = now
	return e
}

// Params returns the evaluator settings.
func (e *Evaluator) Params() Params { return e.p }

// Evaluate runs the rejection gates in order, then tallies votes.
func (e *Evaluator) Evaluate(ps *model.PriceSeries) model.EvaluationResult {
	p := e.p
	bars := ps.Bars
	if len(bars) < p.MinBars || len(bars) < 2 {
		return reject(fmt.Sprintf("%s: %d/%d bars", ReasonInsufficientHistory, len(bars), p.MinBars))
	}
	latest := bars[len(bars)-1]
	closes := calculator.Closes(bars)

	// Gate 1: volatility.
	atr := calculator.ATR(calculator.Highs(bars), calculator.Lows(bars), closes, p.ATRPeriod).Last()
	if !atr.Valid || atr.V/latest.Close < p.MinATRRatio {
		return reject(ReasonLowVolatility)
	}

	// Gate 2: higher timeframe trend.
	htfEMA := calculator.EMA(calculator.Closes(ps.HigherBars), p.HTFTrend).Last()
	if !htfEMA.Valid {
		return reject(ReasonNoHigherTrend)
	}

	// Gate 3: close-only policy.
	if p.CloseOnly {
		closedAt := latest.Time.Add(ps.Timeframe.Duration())
		if e.now().Sub(closedAt) < p.CloseGrace {
			return reject(ReasonWaitingClose)
		}
	}

	in := indicators{
		close:   latest.Close,
		htfEMA:  htfEMA,
		emaFast: calculator.EMA(closes, p.EMAFast).Last(),
		emaSlow: calculator.EMA(closes, p.EMASlow).Last(),
		rsi:     calculator.RSI(closes, p.RSIPeriod),
	}
	in.macd, in.macdSignal = calculator.MACD(closes, p.MACDFast, p.MACDSlow, p.MACDSignal)
	trend := calculator.EMA(closes, p.EMATrend).Last()

	votes := collectVotes(in)
	up, down := tally(votes)

	res := model.EvaluationResult{UpVotes: up, DownVotes: down}
	summary := summarize(votes, atr.V, trend)

	var side model.Direction
	var n int
	switch {
	case up >= p.MinVotes && up > down:
		side, n = model.DirectionBuy, up
	case down >= p.MinVotes && down > up:
		side, n = model.DirectionSell, down
	default:
		res.Reason = fmt.Sprintf("%s: up=%d down=%d %s", ReasonNoSide, up, down, summary)
		return res
	}

	res.ShouldSignal = true
	res.Direction = side
	res.Confidence = Confidence(n, p)
	res.Reason = fmt.Sprintf("%d votes %s", n, summary)
	return res
}

// Confidence maps a winning vote count to [0, ConfidenceCap]. It is
// monotonic in votes.
func Confidence(votes int, p Params) float64 {
	c := p.ConfidenceBase + p.ConfidenceStep*float64(votes-p.MinVotes)
	if c < 0 {
		c = 0
	}
	if c > p.ConfidenceCap {
		c = p.ConfidenceCap
	}
	return c
}

func reject(reason string) model.EvaluationResult {
	return model.EvaluationResult{Reason: reason}
}

func summarize(votes []Vote, atr float64, trend calculator.Value) string {
	parts := make([]string, 0, len(votes)+2)
	for _, v := range votes {
		if v.Direction != model.DirectionNone {
			parts = append(parts, v.Name+":"+v.Commentary)
		}
	}
	parts = append(parts, fmt.Sprintf("atr=%.5f", atr))
	if trend.Valid {
		parts = append(parts, fmt.Sprintf("ema200=%.5f", trend.V))
	}
	return "[" + strings.Join(parts, " ") + "]"
}
