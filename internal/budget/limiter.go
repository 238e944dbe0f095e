// Package budget caps calls to the market data provider per wall-clock hour
// and per UTC day.
package budget

import (
	"errors"
	"sync"
	"time"
)

// ErrExhausted is returned when the hourly or daily call cap is reached.
var ErrExhausted = errors.New("call budget exhausted")

// State is a snapshot of the limiter counters.
type State struct {
	HourBucket time.Time `json:"hour_bucket"`
	HourCalls  int       `json:"hour_calls"`
	DayBucket  time.Time `json:"day_bucket"`
	DayCalls   int       `json:"day_calls"`
	MaxPerHour int       `json:"max_per_hour"`
	MaxPerDay  int       `json:"max_per_day"`
}

// Limiter admits provider calls against hourly and daily caps. The counters
// never exceed their caps: a call over either cap is refused, not counted.
type Limiter struct {
	mu         sync.Mutex
	maxPerHour int
	maxPerDay  int
	hourBucket time.Time
	hourCalls  int
	dayBucket  time.Time
	dayCalls   int
	now        func() time.Time
}

// NewLimiter creates a limiter. A cap of zero or less admits nothing.
func NewLimiter(maxPerHour, maxPerDay int) *Limiter {
	return &Limiter{maxPerHour: maxPerHour, maxPerDay: maxPerDay, now: time.Now}
}

// WithClock replaces the wall clock, for tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Admit reports whether one more call fits in both budgets and counts it if so.
func (l *Limiter) Admit() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollover()
	if l.hourCalls >= l.maxPerHour || l.dayCalls >= l.maxPerDay {
		return false
	}
	l.hourCalls++
	l.dayCalls++
	return true
}

// Snapshot returns the current counters after applying any due rollover.
func (l *Limiter) Snapshot() State {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollover()
	return State{
		HourBucket: l.hourBucket,
		HourCalls:  l.hourCalls,
		DayBucket:  l.dayBucket,
		DayCalls:   l.dayCalls,
		MaxPerHour: l.maxPerHour,
		MaxPerDay:  l.maxPerDay,
	}
}

// SetCaps changes both caps; counters are kept.
func (l *Limiter) SetCaps(maxPerHour, maxPerDay int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.maxPerHour = maxPerHour
	l.maxPerDay = maxPerDay
}

// rollover resets each counter independently when its bucket has advanced.
func (l *Limiter) rollover() {
	now := l.now().UTC()
	hour := now.Truncate(time.Hour)
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	if !hour.Equal(l.hourBucket) {
		l.hourBucket = hour
		l.hourCalls = 0
	}
	if !day.Equal(l.dayBucket) {
		l.dayBucket = day
		l.dayCalls = 0
	}
}
