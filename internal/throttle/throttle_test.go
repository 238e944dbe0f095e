package throttle

import (
	"testing"
	"time"
)

func TestAllow_Cooldown(t *testing.T) {
	th := New(10*time.Minute, 0)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	if !th.Allow("EURUSD", now) {
		t.Fatal("first signal should pass")
	}
	if th.Allow("EURUSD", now.Add(9*time.Minute)) {
		t.Fatal("signal inside cooldown should be rejected")
	}
	if !th.Allow("EURUSD", now.Add(10*time.Minute)) {
		t.Fatal("signal at exactly the cooldown should pass")
	}
	if !th.Allow("GBPUSD", now.Add(10*time.Minute)) {
		t.Fatal("cooldown is per instrument")
	}
}

func TestAllow_RejectedDoesNotMoveTimestamps(t *testing.T) {
	th := New(10*time.Minute, 0)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	th.Allow("EURUSD", now)
	th.Allow("EURUSD", now.Add(5*time.Minute))

	if !th.Allow("EURUSD", now.Add(10*time.Minute)) {
		t.Fatal("rejected candidate must not restart the cooldown")
	}
}

func TestAllow_GlobalGap(t *testing.T) {
	th := New(time.Hour, 2*time.Minute)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	if !th.Allow("EURUSD", now) {
		t.Fatal("first signal should pass")
	}
	if th.Allow("GBPUSD", now.Add(time.Minute)) {
		t.Fatal("signal inside the global gap should be rejected")
	}
	if _, ok := th.LastSignal("GBPUSD"); ok {
		t.Fatal("rejected instrument must not be recorded")
	}
	if !th.Allow("GBPUSD", now.Add(2*time.Minute)) {
		t.Fatal("signal after the global gap should pass")
	}
}

func TestReset(t *testing.T) {
	th := New(time.Hour, time.Hour)
	now := time.Now()
	th.Allow("EURUSD", now)
	th.Reset()
	if !th.Allow("EURUSD", now.Add(time.Second)) {
		t.Fatal("reset should clear all timestamps")
	}
}
