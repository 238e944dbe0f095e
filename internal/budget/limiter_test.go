package budget

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func TestAdmit_HourCap(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 4, 10, 5, 0, 0, time.UTC)}
	l := NewLimiter(8, 100).WithClock(clock.Now)

	admitted := 0
	for i := 0; i < 20; i++ {
		if l.Admit() {
			admitted++
		}
		clock.t = clock.t.Add(time.Minute)
	}
	if admitted != 8 {
		t.Fatalf("expected exactly 8 admissions in one hour, got %d", admitted)
	}
	st := l.Snapshot()
	if st.HourCalls != 8 || st.DayCalls != 8 {
		t.Errorf("counters must not exceed caps: %+v", st)
	}
}

func TestAdmit_HourRollover(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 4, 10, 59, 0, 0, time.UTC)}
	l := NewLimiter(1, 100).WithClock(clock.Now)

	if !l.Admit() {
		t.Fatal("first call should be admitted")
	}
	if l.Admit() {
		t.Fatal("second call in the same hour should be denied")
	}
	clock.t = clock.t.Add(2 * time.Minute)
	if !l.Admit() {
		t.Fatal("call in the next hour should be admitted")
	}
	if got := l.Snapshot().DayCalls; got != 2 {
		t.Errorf("day counter should keep counting across hours, got %d", got)
	}
}

func TestAdmit_DayCapAndRollover(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 4, 20, 0, 0, 0, time.UTC)}
	l := NewLimiter(10, 3).WithClock(clock.Now)

	for i := 0; i < 3; i++ {
		if !l.Admit() {
			t.Fatalf("call %d should be admitted", i)
		}
		clock.t = clock.t.Add(time.Hour)
	}
	if l.Admit() {
		t.Fatal("daily cap reached, call should be denied even in a fresh hour")
	}

	clock.t = time.Date(2024, 3, 5, 0, 0, 1, 0, time.UTC)
	if !l.Admit() {
		t.Fatal("new day should reset the daily counter")
	}
}

func TestAdmit_ZeroCapDeniesAll(t *testing.T) {
	l := NewLimiter(0, 10)
	if l.Admit() {
		t.Fatal("zero hourly cap should deny")
	}
}
