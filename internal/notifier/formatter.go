package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"SignalPulse/internal/budget"
	"SignalPulse/internal/model"
	"SignalPulse/internal/state"
)

// FormatSignal renders an emitted signal.
func FormatSignal(sig *model.Signal) string {
	var b strings.Builder

	arrow := "🟢⬆️"
	if sig.Direction == model.DirectionSell {
		arrow = "🔴⬇️"
	}
	b.WriteString(fmt.Sprintf("%s <b>%s %s</b> | %s\n\n", arrow, html.EscapeString(sig.Symbol), sig.Direction, sig.Timeframe))
	b.WriteString(fmt.Sprintf("Confidence: %.0f%%\n", sig.Confidence*100))
	b.WriteString(fmt.Sprintf("Amount: %s\n", sig.Amount.String()))
	b.WriteString(fmt.Sprintf("Expiry: %s\n", sig.Timeframe))
	b.WriteString(fmt.Sprintf("Time: %s UTC\n", sig.Time.UTC().Format("2006-01-02 15:04:05")))
	if sig.Reason != "" {
		b.WriteString(fmt.Sprintf("\n<i>%s</i>\n", html.EscapeString(sig.Reason)))
	}
	return b.String()
}

// FormatStats renders outcome counters under a title.
func FormatStats(title string, s model.Stats) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 <b>%s</b> | %s\n\n", html.EscapeString(title), s.Day))
	b.WriteString(fmt.Sprintf("Wins: %d | Losses: %d | Skips: %d\n", s.Wins, s.Losses, s.Skips))
	b.WriteString(fmt.Sprintf("Win rate: %.1f%%\n", s.WinRate()*100))
	b.WriteString(fmt.Sprintf("Streak: %d wins / %d losses\n", s.ConsecutiveWins, s.ConsecutiveLosses))
	b.WriteString(fmt.Sprintf("Session PnL: %s\n", s.SessionPnL.StringFixed(2)))
	return b.String()
}

// FormatStatus renders the run state, settings and call budget usage.
func FormatStatus(snap state.Snapshot, bs budget.State, now time.Time) string {
	var b strings.Builder
	run := snap.Run

	b.WriteString("⚙️ <b>SignalPulse status</b>\n\n")
	phase := run.Phase
	if phase == "" {
		phase = model.PhaseIdle
	}
	b.WriteString(fmt.Sprintf("Phase: %s\n", phase))
	if run.Running() {
		left := run.EndsAt.Sub(now).Truncate(time.Minute)
		if left < 0 {
			left = 0
		}
		b.WriteString(fmt.Sprintf("Ends: %s UTC (%s left)\n", run.EndsAt.UTC().Format("15:04"), left))
		b.WriteString(fmt.Sprintf("Run: amount %s | threshold %.2f | %s\n",
			run.Params.Amount.String(), run.Params.Threshold, run.Params.Timeframe))
	} else if run.StopReason != "" {
		b.WriteString(fmt.Sprintf("Last stop: %s\n", html.EscapeString(run.StopReason)))
	}
	b.WriteString(fmt.Sprintf("Cycles: %d | Signals: %d\n\n", run.Cycles, run.Signals))

	b.WriteString(fmt.Sprintf("Watchlist: %s\n", formatWatchlist(snap.Watchlist)))
	b.WriteString(fmt.Sprintf("Defaults: amount %s | threshold %.2f | %s | %dmin\n",
		snap.Amount.String(), snap.Threshold, snap.Timeframe, snap.DurationMinutes))
	b.WriteString(fmt.Sprintf("Guardrail: %d consecutive losses\n", snap.LossStreakStop))
	b.WriteString(fmt.Sprintf("API calls: %d/%d this hour | %d/%d today\n",
		bs.HourCalls, bs.MaxPerHour, bs.DayCalls, bs.MaxPerDay))
	return b.String()
}

func formatWatchlist(list []model.InstrumentConfig) string {
	if len(list) == 0 {
		return "(empty)"
	}
	parts := make([]string, 0, len(list))
	for _, in := range list {
		sym := html.EscapeString(in.Symbol)
		if in.Enabled {
			parts = append(parts, sym)
		} else {
			parts = append(parts, "<s>"+sym+"</s>")
		}
	}
	return strings.Join(parts, ", ")
}

// FormatRunStarted confirms a start command.
func FormatRunStarted(run model.RunState, symbols []string) string {
	return fmt.Sprintf("▶️ <b>Autopoll started</b>\n\nAmount: %s\nThreshold: %.2f\nTimeframe: %s\nUntil: %s UTC\nWatching: %s",
		run.Params.Amount.String(), run.Params.Threshold, run.Params.Timeframe,
		run.EndsAt.UTC().Format("2006-01-02 15:04"), html.EscapeString(strings.Join(symbols, ", ")))
}

// FormatRunEnded reports a terminal transition.
func FormatRunEnded(run model.RunState) string {
	icon := "⏹"
	switch run.Phase {
	case model.PhaseGuardrailTripped:
		icon = "🛑"
	case model.PhaseExpired:
		icon = "⌛"
	}
	msg := fmt.Sprintf("%s <b>Autopoll %s</b>\n\nCycles: %d | Signals: %d",
		icon, strings.ToLower(strings.ReplaceAll(string(run.Phase), "_", " ")), run.Cycles, run.Signals)
	if run.StopReason != "" {
		msg += "\nReason: " + html.EscapeString(run.StopReason)
	}
	return msg
}

// FormatBudgetExhausted warns that the remaining instruments were skipped this cycle.
func FormatBudgetExhausted(bs budget.State, skipped []string) string {
	return fmt.Sprintf("⚠️ <b>API budget exhausted</b>\n\n%d/%d this hour | %d/%d today\nSkipped this cycle: %s",
		bs.HourCalls, bs.MaxPerHour, bs.DayCalls, bs.MaxPerDay, html.EscapeString(strings.Join(skipped, ", ")))
}

// FormatHelp lists the operator commands.
func FormatHelp() string {
	return strings.Join([]string{
		"<b>Commands</b>",
		"/start [amount] [threshold] [timeframe] [minutes] – begin autopoll",
		"/stop – stop autopoll",
		"/watchlist EURUSD,GBPUSD,-USDJPY – replace the watchlist (- disables)",
		"/guardrail N – stop after N consecutive losses (0 disables)",
		"/budget [per-hour] [per-day] – show or change the API call caps (saved)",
		"/win [symbol] | /loss [symbol] | /skip [symbol] – report an outcome",
		"/stats – today's results",
		"/status – run state and API budget",
		"/help – this message",
	}, "\n")
}
