package scheduler

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"SignalPulse/internal/config"
	"SignalPulse/internal/model"
	"SignalPulse/internal/notifier"
	"SignalPulse/internal/state"
)

// HandleCommand processes an operator command and returns a reply.
func (s *Scheduler) HandleCommand(_ context.Context, text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return notifier.FormatHelp()
	}
	cmd := strings.ToLower(fields[0])
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}
	args := fields[1:]

	switch cmd {
	case "/start":
		return s.cmdStart(args)
	case "/stop":
		run, err := s.Stop("operator stop")
		if err != nil {
			return "ℹ️ Autopoll is not running."
		}
		return notifier.FormatRunEnded(run)
	case "/watchlist":
		return s.cmdWatchlist(args)
	case "/guardrail":
		return s.cmdGuardrail(args)
	case "/budget":
		return s.cmdBudget(args)
	case "/win", "/loss", "/skip":
		o, _ := model.ParseOutcome(strings.TrimPrefix(cmd, "/"))
		symbol := ""
		if len(args) > 0 {
			symbol = normalizeSymbol(args[0])
		}
		return s.outcomeReply(symbol, "", o)
	case "/stats":
		return notifier.FormatStats("Today", s.tracker.Snapshot())
	case "/status":
		return notifier.FormatStatus(s.store.Get(), s.budget.Snapshot(), s.now())
	default:
		return notifier.FormatHelp()
	}
}

// HandleCallback processes an inline button press.
func (s *Scheduler) HandleCallback(_ context.Context, data string) string {
	id, o, err := notifier.ParseOutcomeCallback(data)
	if err != nil {
		return warn(err.Error())
	}
	return s.outcomeReply("", id, o)
}

func (s *Scheduler) outcomeReply(symbol, signalID string, o model.Outcome) string {
	st, trip, err := s.ReportOutcome(symbol, signalID, o)
	if err != nil {
		return warn(err.Error())
	}
	subject := symbol
	if subject == "" {
		subject = "last signal"
	}
	reply := fmt.Sprintf("📝 Recorded %s for %s\n\n%s", o, html.EscapeString(subject), notifier.FormatStats("Today", st))
	if trip.Tripped {
		reply += "\n🛑 Guardrail: " + html.EscapeString(trip.Reason)
	}
	return reply
}

// cmdStart parses "/start [amount] [threshold] [timeframe] [duration]".
// Omitted arguments fall back to the saved settings, and given ones become
// the new saved settings.
func (s *Scheduler) cmdStart(args []string) string {
	snap := s.store.Get()
	p := model.RunParams{
		Amount:    snap.Amount,
		Threshold: snap.Threshold,
		Timeframe: snap.Timeframe,
		Duration:  snap.Duration(),
	}

	var err error
	if len(args) > 0 {
		if p.Amount, err = decimal.NewFromString(args[0]); err != nil {
			return warn(fmt.Sprintf("bad amount %q", args[0]))
		}
	}
	if len(args) > 1 {
		if p.Threshold, err = parseThreshold(args[1]); err != nil {
			return warn(err.Error())
		}
	}
	if len(args) > 2 {
		if p.Timeframe, err = model.ParseTimeframe(args[2]); err != nil {
			return warn(err.Error())
		}
	}
	if len(args) > 3 {
		if p.Duration, err = parseDuration(args[3]); err != nil {
			return warn(err.Error())
		}
	}

	if len(snap.EnabledSymbols()) == 0 {
		return "⚠️ Watchlist is empty. Use /watchlist EURUSD,GBPUSD first."
	}

	run, err := s.Start(p)
	if errors.Is(err, ErrAlreadyRunning) {
		return "ℹ️ Autopoll already running until " + run.EndsAt.UTC().Format("15:04") + " UTC. /stop first."
	}
	if err != nil {
		return warn(err.Error())
	}

	_ = s.store.Update(func(sn *state.Snapshot) {
		sn.Amount = p.Amount
		sn.Threshold = p.Threshold
		sn.Timeframe = p.Timeframe
		sn.DurationMinutes = int(p.Duration / time.Minute)
	})
	return notifier.FormatRunStarted(run, snap.EnabledSymbols())
}

func (s *Scheduler) cmdWatchlist(args []string) string {
	if len(args) == 0 {
		snap := s.store.Get()
		return notifier.FormatStatus(snap, s.budget.Snapshot(), s.now())
	}
	tf := s.store.Get().Timeframe
	list := config.ParseWatchlist(strings.Join(args, ","), tf)
	if len(list) == 0 {
		return "⚠️ No valid symbols given."
	}
	if err := s.store.Update(func(sn *state.Snapshot) { sn.Watchlist = list }); err != nil {
		return warn("Watchlist changed but could not be saved: " + err.Error())
	}
	snap := s.store.Get()
	return fmt.Sprintf("✅ Watchlist: %s", html.EscapeString(strings.Join(snap.EnabledSymbols(), ", ")))
}

func (s *Scheduler) cmdGuardrail(args []string) string {
	if len(args) == 0 {
		return fmt.Sprintf("Guardrail: stop after %d consecutive losses.", s.tracker.Limits().LossStreakStop)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 {
		return warn(fmt.Sprintf("bad loss streak %q", args[0]))
	}
	s.tracker.SetLossStreakStop(n)
	if err := s.store.Update(func(sn *state.Snapshot) { sn.LossStreakStop = n }); err != nil {
		return warn("Guardrail changed but could not be saved: " + err.Error())
	}
	if n == 0 {
		return "✅ Loss streak guardrail disabled."
	}
	return fmt.Sprintf("✅ Guardrail: stop after %d consecutive losses.", n)
}

// cmdBudget shows or changes the provider call caps. Changed caps are saved
// and override the configured ones from then on.
func (s *Scheduler) cmdBudget(args []string) string {
	bs := s.budget.Snapshot()
	if len(args) == 0 {
		return fmt.Sprintf("API calls: %d/%d this hour | %d/%d today", bs.HourCalls, bs.MaxPerHour, bs.DayCalls, bs.MaxPerDay)
	}
	perHour, err := strconv.Atoi(args[0])
	if err != nil || perHour < 0 {
		return warn(fmt.Sprintf("bad hourly cap %q", args[0]))
	}
	perDay := bs.MaxPerDay
	if len(args) > 1 {
		if perDay, err = strconv.Atoi(args[1]); err != nil || perDay < 0 {
			return warn(fmt.Sprintf("bad daily cap %q", args[1]))
		}
	}
	s.budget.SetCaps(perHour, perDay)
	if err := s.store.Update(func(sn *state.Snapshot) {
		sn.CallCaps = &state.CallCaps{PerHour: perHour, PerDay: perDay}
	}); err != nil {
		return warn("API budget changed but could not be saved: " + err.Error())
	}
	return fmt.Sprintf("✅ API budget: %d/hour, %d/day", perHour, perDay)
}

// warn renders an error reply. Replies are sent as HTML and msg may echo
// operator input.
func warn(msg string) string {
	return "⚠️ " + html.EscapeString(msg)
}

// parseThreshold accepts a fraction ("0.75") or a percentage ("75").
func parseThreshold(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil {
		return 0, fmt.Errorf("bad threshold %q", s)
	}
	if v > 1 {
		v /= 100
	}
	if v < 0 || v > 1 {
		return 0, fmt.Errorf("threshold %q out of range", s)
	}
	return v, nil
}

// parseDuration accepts plain minutes ("90") or a Go duration ("1h30m").
func parseDuration(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("duration %q must be positive", s)
		}
		return time.Duration(n) * time.Minute, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("bad duration %q", s)
	}
	return d, nil
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "/", ""))
}
