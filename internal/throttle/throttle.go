// Package throttle suppresses signals that come too close together, per
// instrument and across all instruments.
package throttle

import (
	"sync"
	"time"
)

// Throttle enforces a per-instrument cooldown and a global minimum gap.
type Throttle struct {
	mu         sync.Mutex
	cooldown   time.Duration
	globalGap  time.Duration
	lastGlobal time.Time
	last       map[string]time.Time
}

// New creates an empty throttle.
func New(cooldown, globalGap time.Duration) *Throttle {
	return &Throttle{
		cooldown:  cooldown,
		globalGap: globalGap,
		last:      make(map[string]time.Time),
	}
}

// Allow reports whether a signal for symbol may be emitted at now. On
// acceptance both the instrument and the global timestamps move to now in the
// same critical section.
func (t *Throttle) Allow(symbol string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if last, ok := t.last[symbol]; ok && now.Sub(last) < t.cooldown {
		return false
	}
	if !t.lastGlobal.IsZero() && now.Sub(t.lastGlobal) < t.globalGap {
		return false
	}
	t.last[symbol] = now
	t.lastGlobal = now
	return true
}

// Reset forgets every timestamp; a fresh run starts with an empty throttle.
func (t *Throttle) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = make(map[string]time.Time)
	t.lastGlobal = time.Time{}
}

// LastSignal returns when symbol last passed, if ever.
func (t *Throttle) LastSignal(symbol string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ts, ok := t.last[symbol]
	return ts, ok
}
