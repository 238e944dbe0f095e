// Package stats counts reported outcomes per UTC day and decides when the
// loss guardrail trips.
package stats

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"SignalPulse/internal/model"
)

const dayLayout = "2006-01-02"

// Limits configure the guardrail. Zero values disable a check.
type Limits struct {
	LossStreakStop int
	StopLoss       decimal.Decimal // session loss that stops the run, as a positive amount
	TakeProfit     decimal.Decimal
	Payout         decimal.Decimal // fraction of the stake won on a win
}

// Trip tells the scheduler whether to stop.
type Trip struct {
	Tripped bool
	Reason  string
}

// Tracker owns the Stats value. Day rollover is applied lazily on every access.
type Tracker struct {
	mu       sync.Mutex
	stats    model.Stats
	previous *model.Stats
	limits   Limits
	now      func() time.Time
}

// NewTracker creates a tracker, resuming from initial when it belongs to today.
func NewTracker(limits Limits, initial model.Stats) *Tracker {
	return &Tracker{stats: initial, limits: limits, now: time.Now}
}

// WithClock replaces the wall clock, for tests.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// Record applies one outcome. amount is the stake of the signal it refers to
// and only moves the session PnL.
func (t *Tracker) Record(o model.Outcome, amount decimal.Decimal) (model.Stats, Trip) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()

	s := &t.stats
	switch o {
	case model.OutcomeWin:
		s.Wins++
		s.ConsecutiveWins++
		s.ConsecutiveLosses = 0
		s.SessionPnL = s.SessionPnL.Add(amount.Mul(t.limits.Payout))
	case model.OutcomeLoss:
		s.Losses++
		s.ConsecutiveLosses++
		s.ConsecutiveWins = 0
		s.SessionPnL = s.SessionPnL.Sub(amount)
	case model.OutcomeSkip:
		s.Skips++
	}
	return *s, t.check(o)
}

func (t *Tracker) check(o model.Outcome) Trip {
	s, l := t.stats, t.limits
	if o == model.OutcomeLoss && l.LossStreakStop > 0 && s.ConsecutiveLosses >= l.LossStreakStop {
		return Trip{Tripped: true, Reason: fmt.Sprintf("%d consecutive losses", s.ConsecutiveLosses)}
	}
	if l.StopLoss.IsPositive() && s.SessionPnL.LessThanOrEqual(l.StopLoss.Neg()) {
		return Trip{Tripped: true, Reason: fmt.Sprintf("session stop loss hit (%s)", s.SessionPnL.StringFixed(2))}
	}
	if l.TakeProfit.IsPositive() && s.SessionPnL.GreaterThanOrEqual(l.TakeProfit) {
		return Trip{Tripped: true, Reason: fmt.Sprintf("session take profit hit (%s)", s.SessionPnL.StringFixed(2))}
	}
	return Trip{}
}

// Snapshot returns today's stats.
func (t *Tracker) Snapshot() model.Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()
	return t.stats
}

// Previous returns the last completed day, if a rollover happened in this process.
func (t *Tracker) Previous() (model.Stats, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()
	if t.previous == nil {
		return model.Stats{}, false
	}
	return *t.previous, true
}

// ResetSession zeroes the session PnL for a fresh run. Day counters are kept.
func (t *Tracker) ResetSession() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.SessionPnL = decimal.Zero
}

// Limits returns the guardrail settings.
func (t *Tracker) Limits() Limits {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.limits
}

// SetLossStreakStop changes the consecutive loss threshold; 0 disables it.
func (t *Tracker) SetLossStreakStop(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.limits.LossStreakStop = n
}

func (t *Tracker) rollover() {
	today := t.now().UTC().Format(dayLayout)
	if t.stats.Day == today {
		return
	}
	if t.stats.Day != "" {
		prev := t.stats
		t.previous = &prev
	}
	t.stats = model.Stats{Day: today, SessionPnL: t.stats.SessionPnL}
}
