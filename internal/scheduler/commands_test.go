package scheduler

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"SignalPulse/internal/model"
	"SignalPulse/internal/notifier"
	"SignalPulse/internal/state"
)

func TestStartCommandParsesArgumentsAndSavesThem(t *testing.T) {
	h := newHarness(t, harnessOpts{watchlist: []string{"EURUSD"}})
	h.block()
	ctx := context.Background()

	reply := h.s.HandleCommand(ctx, "/start 5 80 15m 90")
	if !strings.Contains(reply, "Autopoll started") {
		t.Fatalf("unexpected reply: %s", reply)
	}
	run := h.s.Run()
	if !run.Running() {
		t.Fatal("run not started")
	}
	p := run.Params
	if !p.Amount.Equal(decimal.NewFromInt(5)) || p.Threshold != 0.8 || p.Timeframe != model.TF15m || p.Duration != 90*time.Minute {
		t.Errorf("params: %+v", p)
	}
	snap := h.store.Get()
	if snap.Timeframe != model.TF15m || snap.DurationMinutes != 90 || snap.Threshold != 0.8 {
		t.Errorf("settings not saved: %+v", snap)
	}

	if reply := h.s.HandleCommand(ctx, "/start"); !strings.Contains(reply, "already running") {
		t.Errorf("second start: %s", reply)
	}
	if reply := h.s.HandleCommand(ctx, "/stop"); !strings.Contains(reply, "stopped") {
		t.Errorf("stop: %s", reply)
	}
	if reply := h.s.HandleCommand(ctx, "/stop"); !strings.Contains(reply, "not running") {
		t.Errorf("stop when idle: %s", reply)
	}
}

func TestStartCommandRejectsBadInput(t *testing.T) {
	h := newHarness(t, harnessOpts{watchlist: []string{"EURUSD"}})
	h.block()
	ctx := context.Background()

	for _, cmd := range []string{"/start abc", "/start 5 1.5x", "/start 5 0.7 7min", "/start 5 0.7 5m -3", "/start 0"} {
		if reply := h.s.HandleCommand(ctx, cmd); !strings.HasPrefix(reply, "⚠️") {
			t.Errorf("%q: expected a warning, got %s", cmd, reply)
		}
	}
	if h.s.Run().Running() {
		t.Fatal("bad input must not start a run")
	}
}

func TestStartCommandNeedsWatchlist(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.block()

	// A watchlist of only disabled entries has nothing to poll.
	h.s.HandleCommand(context.Background(), "/watchlist -EURUSD")
	reply := h.s.HandleCommand(context.Background(), "/start")
	if !strings.Contains(reply, "Watchlist is empty") {
		t.Fatalf("unexpected reply: %s", reply)
	}
}

func TestWatchlistCommand(t *testing.T) {
	h := newHarness(t, harnessOpts{watchlist: []string{"EURUSD"}})

	reply := h.s.HandleCommand(context.Background(), "/watchlist gbpusd, -usdjpy AUD/USD")
	if !strings.Contains(reply, "GBPUSD, AUDUSD") {
		t.Fatalf("unexpected reply: %s", reply)
	}
	snap := h.store.Get()
	if len(snap.Watchlist) != 3 {
		t.Fatalf("watchlist: %+v", snap.Watchlist)
	}
	if snap.Watchlist[1].Symbol != "USDJPY" || snap.Watchlist[1].Enabled {
		t.Errorf("disabled entry not kept: %+v", snap.Watchlist[1])
	}
}

func TestGuardrailCommand(t *testing.T) {
	h := newHarness(t, harnessOpts{watchlist: []string{"EURUSD"}})
	ctx := context.Background()

	if reply := h.s.HandleCommand(ctx, "/guardrail 2"); !strings.Contains(reply, "2 consecutive") {
		t.Fatalf("unexpected reply: %s", reply)
	}
	if h.tracker.Limits().LossStreakStop != 2 || h.store.Get().LossStreakStop != 2 {
		t.Error("guardrail not applied and saved")
	}
	if reply := h.s.HandleCommand(ctx, "/guardrail x"); !strings.HasPrefix(reply, "⚠️") {
		t.Errorf("bad guardrail accepted: %s", reply)
	}

	h.s.HandleCommand(ctx, "/loss")
	reply := h.s.HandleCommand(ctx, "/loss EURUSD")
	if !strings.Contains(reply, "Guardrail: 2 consecutive losses") {
		t.Errorf("trip not reported: %s", reply)
	}
}

func TestOutcomeCommandsAndCallbacks(t *testing.T) {
	h := newHarness(t, harnessOpts{watchlist: []string{"EURUSD"}})
	ctx := context.Background()

	if reply := h.s.HandleCommand(ctx, "/win eur/usd"); !strings.Contains(reply, "Recorded win for EURUSD") {
		t.Fatalf("unexpected reply: %s", reply)
	}
	h.s.HandleCommand(ctx, "/skip")
	st := h.tracker.Snapshot()
	if st.Wins != 1 || st.Skips != 1 || st.ConsecutiveWins != 1 {
		t.Errorf("stats: %+v", st)
	}

	h.s.mu.Lock()
	h.s.pending = append(h.s.pending, model.Signal{ID: "sig-9", Symbol: "GBPUSD", Amount: decimal.NewFromInt(10)})
	h.s.mu.Unlock()

	reply := h.s.HandleCallback(ctx, notifier.OutcomeCallbackData("sig-9", model.OutcomeLoss))
	if !strings.Contains(reply, "Recorded loss") {
		t.Fatalf("callback reply: %s", reply)
	}
	if got := h.tracker.Snapshot().SessionPnL; !got.Equal(decimal.RequireFromString("-9.2")) {
		t.Errorf("session pnl: got %s, want -9.2 (0.8 win on stake 1, loss of 10)", got)
	}
	if reply := h.s.HandleCallback(ctx, notifier.OutcomeCallbackData("sig-9", model.OutcomeWin)); !strings.HasPrefix(reply, "⚠️") {
		t.Errorf("duplicate callback accepted: %s", reply)
	}
	if reply := h.s.HandleCallback(ctx, "garbage"); !strings.HasPrefix(reply, "⚠️") {
		t.Errorf("garbage callback accepted: %s", reply)
	}
}

func TestInfoCommands(t *testing.T) {
	h := newHarness(t, harnessOpts{watchlist: []string{"EURUSD"}})
	ctx := context.Background()

	if reply := h.s.HandleCommand(ctx, "/status@SignalPulseBot"); !strings.Contains(reply, "Phase: IDLE") {
		t.Errorf("status: %s", reply)
	}
	if reply := h.s.HandleCommand(ctx, "/stats"); !strings.Contains(reply, "Wins: 0") {
		t.Errorf("stats: %s", reply)
	}
	for _, text := range []string{"/help", "hello", ""} {
		if reply := h.s.HandleCommand(ctx, text); !strings.Contains(reply, "/start") {
			t.Errorf("%q should reply with help, got %s", text, reply)
		}
	}
}

func TestParseThresholdAndDuration(t *testing.T) {
	for in, want := range map[string]float64{"0.75": 0.75, "75": 0.75, "80%": 0.8, "1": 1} {
		got, err := parseThreshold(in)
		if err != nil || got != want {
			t.Errorf("parseThreshold(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := parseThreshold("250"); err == nil {
		t.Error("threshold above 100% accepted")
	}
	for in, want := range map[string]time.Duration{"90": 90 * time.Minute, "2h": 2 * time.Hour} {
		got, err := parseDuration(in)
		if err != nil || got != want {
			t.Errorf("parseDuration(%q) = %v, %v", in, got, err)
		}
	}
}

func TestBudgetCommand(t *testing.T) {
	h := newHarness(t, harnessOpts{watchlist: []string{"EURUSD"}, maxPerHour: 5})
	ctx := context.Background()

	if reply := h.s.HandleCommand(ctx, "/budget"); !strings.Contains(reply, "0/5 this hour") {
		t.Errorf("budget: %s", reply)
	}
	if reply := h.s.HandleCommand(ctx, "/budget 2"); !strings.Contains(reply, "2/hour, 1000/day") {
		t.Errorf("set budget: %s", reply)
	}
	if bs := h.limiter.Snapshot(); bs.MaxPerHour != 2 || bs.MaxPerDay != 1000 {
		t.Errorf("caps not applied: %+v", bs)
	}
	if caps := h.store.Get().CallCaps; caps == nil || caps.PerHour != 2 || caps.PerDay != 1000 {
		t.Errorf("caps not saved: %+v", caps)
	}
	if reply := h.s.HandleCommand(ctx, "/budget x"); !strings.HasPrefix(reply, "⚠️") {
		t.Errorf("bad cap accepted: %s", reply)
	}
}

func TestSavedBudgetCapsApplyOnBoot(t *testing.T) {
	h := newHarness(t, harnessOpts{
		watchlist: []string{"EURUSD"},
		snapshot:  &state.Snapshot{Version: state.SnapshotVersion, CallCaps: &state.CallCaps{PerHour: 3, PerDay: 30}},
	})
	if bs := h.limiter.Snapshot(); bs.MaxPerHour != 3 || bs.MaxPerDay != 30 {
		t.Errorf("saved caps not applied: %+v", bs)
	}
}

func TestRepliesEscapeOperatorInput(t *testing.T) {
	h := newHarness(t, harnessOpts{watchlist: []string{"EURUSD"}})
	h.block()
	ctx := context.Background()

	for _, cmd := range []string{"/start <b>", "/start 5 <i>", "/guardrail <x>", "/budget <1>", "/win <EUR>", "/watchlist <EUR>"} {
		reply := h.s.HandleCommand(ctx, cmd)
		if strings.Contains(reply, "<b>") && !strings.Contains(reply, "📊") {
			t.Errorf("%q: raw tag in reply %q", cmd, reply)
		}
		for _, raw := range []string{"<i>", "<x>", "<1>", "<EUR>"} {
			if strings.Contains(reply, raw) {
				t.Errorf("%q: unescaped input in reply %q", cmd, reply)
			}
		}
		if !strings.Contains(reply, "&lt;") {
			t.Errorf("%q: expected escaped input in reply %q", cmd, reply)
		}
	}
}
