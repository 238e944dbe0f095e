package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Verdict labels for EvaluationsTotal.
const (
	VerdictSignal         = "signal"
	VerdictRejected       = "rejected"
	VerdictBelowThreshold = "below_threshold"
	VerdictThrottled      = "throttled"
)

var (
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signalpulse_signals_total", Help: "Signals emitted"},
		[]string{"symbol", "direction"},
	)
	EvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signalpulse_evaluations_total", Help: "Instrument evaluations by verdict"},
		[]string{"verdict"},
	)
	BudgetDenialsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "signalpulse_budget_denials_total", Help: "Provider calls denied by the call budget"},
	)
	FetchFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signalpulse_fetch_failures_total", Help: "Market data fetches that yielded no data"},
		[]string{"symbol"},
	)
	CyclePanicsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "signalpulse_cycle_panics_total", Help: "Scheduler cycles aborted by a recovered panic"},
	)
	OutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signalpulse_outcomes_total", Help: "Operator-reported outcomes"},
		[]string{"outcome"},
	)
	CycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "signalpulse_cycle_duration_seconds",
		Help:    "Wall time of one watchlist pass",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 40, 80},
	})
)

func init() {
	prometheus.MustRegister(
		SignalsTotal, EvaluationsTotal, BudgetDenialsTotal,
		FetchFailuresTotal, CyclePanicsTotal, OutcomesTotal, CycleDuration,
	)
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
