package stats

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"SignalPulse/internal/model"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestTracker(limits Limits) (*Tracker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	return NewTracker(limits, model.Stats{}).WithClock(clock.Now), clock
}

func TestRecord_Streaks(t *testing.T) {
	tr, _ := newTestTracker(Limits{})
	one := decimal.NewFromInt(1)

	tr.Record(model.OutcomeWin, one)
	s, _ := tr.Record(model.OutcomeWin, one)
	if s.ConsecutiveWins != 2 || s.ConsecutiveLosses != 0 {
		t.Fatalf("unexpected streaks: %+v", s)
	}
	s, _ = tr.Record(model.OutcomeLoss, one)
	if s.ConsecutiveWins != 0 || s.ConsecutiveLosses != 1 {
		t.Fatalf("loss should reset win streak: %+v", s)
	}
	s, _ = tr.Record(model.OutcomeSkip, one)
	if s.ConsecutiveLosses != 1 || s.Skips != 1 {
		t.Fatalf("skip should not touch streaks: %+v", s)
	}
	if s.Wins != 2 || s.Losses != 1 {
		t.Errorf("unexpected counters: %+v", s)
	}
}

func TestRecord_LossStreakTrips(t *testing.T) {
	tr, _ := newTestTracker(Limits{LossStreakStop: 3})
	one := decimal.NewFromInt(1)

	for i := 0; i < 2; i++ {
		if _, trip := tr.Record(model.OutcomeLoss, one); trip.Tripped {
			t.Fatalf("tripped early after %d losses", i+1)
		}
	}
	_, trip := tr.Record(model.OutcomeLoss, one)
	if !trip.Tripped || !strings.Contains(trip.Reason, "3 consecutive losses") {
		t.Fatalf("expected trip after 3 losses, got %+v", trip)
	}
}

func TestRecord_WinResetsLossStreak(t *testing.T) {
	tr, _ := newTestTracker(Limits{LossStreakStop: 3})
	one := decimal.NewFromInt(1)

	tr.Record(model.OutcomeLoss, one)
	tr.Record(model.OutcomeLoss, one)
	s, _ := tr.Record(model.OutcomeWin, one)
	if s.ConsecutiveLosses != 0 {
		t.Fatalf("win should reset loss streak: %+v", s)
	}
	tr.Record(model.OutcomeLoss, one)
	if _, trip := tr.Record(model.OutcomeLoss, one); trip.Tripped {
		t.Fatal("streak should have restarted after the win")
	}
}

func TestRecord_SessionPnL(t *testing.T) {
	tr, _ := newTestTracker(Limits{
		StopLoss:   decimal.NewFromInt(5),
		TakeProfit: decimal.NewFromInt(4),
		Payout:     decimal.RequireFromString("0.8"),
	})
	two := decimal.NewFromInt(2)

	s, trip := tr.Record(model.OutcomeWin, two)
	if !s.SessionPnL.Equal(decimal.RequireFromString("1.6")) || trip.Tripped {
		t.Fatalf("unexpected pnl %s / trip %+v", s.SessionPnL, trip)
	}
	tr.Record(model.OutcomeWin, two)
	_, trip = tr.Record(model.OutcomeWin, two)
	if !trip.Tripped || !strings.Contains(trip.Reason, "take profit") {
		t.Fatalf("expected take profit trip at 4.8, got %+v", trip)
	}

	tr.ResetSession()
	var last Trip
	for i := 0; i < 3; i++ {
		_, last = tr.Record(model.OutcomeLoss, two)
	}
	if !last.Tripped || !strings.Contains(last.Reason, "stop loss") {
		t.Fatalf("expected stop loss trip at -6, got %+v", last)
	}
}

func TestDayRollover(t *testing.T) {
	tr, clock := newTestTracker(Limits{})
	one := decimal.NewFromInt(1)
	clock.t = time.Date(2024, 5, 1, 23, 59, 0, 0, time.UTC)
	tr.Record(model.OutcomeWin, one)
	tr.Record(model.OutcomeLoss, one)

	if _, ok := tr.Previous(); ok {
		t.Fatal("no day has completed yet")
	}

	clock.t = time.Date(2024, 5, 2, 0, 0, 1, 0, time.UTC)
	s := tr.Snapshot()
	if s.Wins != 0 || s.Losses != 0 || s.ConsecutiveLosses != 0 || s.Day != "2024-05-02" {
		t.Fatalf("expected counters reset on a new UTC day: %+v", s)
	}
	prev, ok := tr.Previous()
	if !ok || prev.Wins != 1 || prev.Losses != 1 || prev.Day != "2024-05-01" {
		t.Fatalf("expected previous day kept: %+v", prev)
	}
}

func TestNewTracker_ResumesSameDay(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	tr := NewTracker(Limits{}, model.Stats{Day: "2024-05-01", Wins: 4}).WithClock(clock.Now)
	if tr.Snapshot().Wins != 4 {
		t.Fatal("same-day stats should be resumed")
	}
	stale := NewTracker(Limits{}, model.Stats{Day: "2024-04-30", Wins: 4}).WithClock(clock.Now)
	if stale.Snapshot().Wins != 0 {
		t.Fatal("stale stats should roll over")
	}
}
