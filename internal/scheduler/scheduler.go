package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"SignalPulse/internal/budget"
	"SignalPulse/internal/collector"
	"SignalPulse/internal/metrics"
	"SignalPulse/internal/model"
	"SignalPulse/internal/notifier"
	"SignalPulse/internal/publisher"
	"SignalPulse/internal/recorder"
	"SignalPulse/internal/state"
	"SignalPulse/internal/stats"
	"SignalPulse/internal/strategy"
	"SignalPulse/internal/throttle"
)

// ReasonShutdown marks a run stopped by process shutdown rather than by the
// operator. Such runs are resumed on the next boot.
const ReasonShutdown = "shutdown"

const maxPending = 50

// defaultDeliverTimeout bounds one notifier or publisher call.
const defaultDeliverTimeout = 10 * time.Second

var (
	ErrAlreadyRunning = errors.New("autopoll already running")
	ErrNotRunning     = errors.New("autopoll not running")
)

// Notifier delivers operator-facing messages.
type Notifier interface {
	Send(ctx context.Context, text string) error
	SendSignal(ctx context.Context, sig *model.Signal) error
}

// Deps are the components one Scheduler drives.
type Deps struct {
	Store     *state.Store
	Collector *collector.Collector
	Evaluator *strategy.Evaluator
	Budget    *budget.Limiter
	Throttle  *throttle.Throttle
	Tracker   *stats.Tracker
	Notifier  Notifier
	Recorder  recorder.Recorder
	Publisher publisher.Publisher
	// Grace is added to every candle close before a cycle starts.
	Grace time.Duration
}

// Scheduler owns the autopoll run: the candle-synchronised loop, its
// lifecycle, and the cron jobs around it.
type Scheduler struct {
	Cron *cron.Cron
	Ctx  context.Context

	store     *state.Store
	collector *collector.Collector
	evaluator *strategy.Evaluator
	budget    *budget.Limiter
	throttle  *throttle.Throttle
	tracker   *stats.Tracker
	notifier  Notifier
	recorder  recorder.Recorder
	publisher publisher.Publisher
	grace     time.Duration

	deliverTimeout time.Duration

	now  func() time.Time
	wait func(ctx context.Context, until time.Time) error

	mu           sync.Mutex
	run          model.RunState
	cancel       context.CancelFunc
	done         chan struct{}
	pending      []model.Signal
	budgetNotice time.Time
}

// NewScheduler creates a Scheduler. ctx bounds every run it starts.
func NewScheduler(ctx context.Context, d Deps) *Scheduler {
	s := &Scheduler{
		Cron:      cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC)),
		Ctx:       ctx,
		store:     d.Store,
		collector: d.Collector,
		evaluator: d.Evaluator,
		budget:    d.Budget,
		throttle:  d.Throttle,
		tracker:   d.Tracker,
		notifier:  d.Notifier,
		recorder:  d.Recorder,
		publisher: d.Publisher,
		grace:     d.Grace,
		now:       time.Now,

		deliverTimeout: defaultDeliverTimeout,
	}
	if s.notifier == nil {
		s.notifier = LogNotifier{}
	}
	if s.recorder == nil {
		s.recorder = recorder.NewNoopRecorder()
	}
	if s.publisher == nil {
		s.publisher = publisher.Noop{}
	}
	s.wait = func(ctx context.Context, until time.Time) error {
		return waitUntil(ctx, s.now, until)
	}
	snap := d.Store.Get()
	if snap.CallCaps != nil {
		s.budget.SetCaps(snap.CallCaps.PerHour, snap.CallCaps.PerDay)
	}
	s.run = snap.Run
	if s.run.Running() {
		// Nothing is looping yet; Resume decides whether to pick it up.
		s.run.Phase = model.PhaseStopped
		s.run.StopReason = ReasonShutdown
	}
	return s
}

// WithClock replaces the wall clock, for tests.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// RegisterJobs registers the daily summary.
func (s *Scheduler) RegisterJobs(dailySummaryCron string) error {
	if dailySummaryCron == "" {
		return nil
	}
	if _, err := s.Cron.AddFunc(dailySummaryCron, s.dailySummary); err != nil {
		return fmt.Errorf("register daily summary: %w", err)
	}
	return nil
}

// StartJobs starts the cron scheduler.
func (s *Scheduler) StartJobs() {
	s.Cron.Start()
	log.Info().Msg("cron jobs started")
}

// StopJobs stops the cron scheduler and waits for running jobs.
func (s *Scheduler) StopJobs() {
	<-s.Cron.Stop().Done()
	log.Info().Msg("cron jobs stopped")
}

// Run returns the current run state.
func (s *Scheduler) Run() model.RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run
}

// Done is closed when the current loop exits. It is nil if no loop was ever started.
func (s *Scheduler) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Start moves Idle (or any terminal phase) to Running.
func (s *Scheduler) Start(p model.RunParams) (model.RunState, error) {
	if err := validateParams(p); err != nil {
		return model.RunState{}, err
	}

	s.mu.Lock()
	if s.run.Running() {
		run := s.run
		s.mu.Unlock()
		return run, ErrAlreadyRunning
	}
	prev := s.done
	s.mu.Unlock()
	if prev != nil {
		<-prev
	}

	s.mu.Lock()
	if s.run.Running() {
		run := s.run
		s.mu.Unlock()
		return run, ErrAlreadyRunning
	}
	now := s.now()
	s.throttle.Reset()
	s.tracker.ResetSession()
	s.pending = nil
	s.run = model.RunState{
		Phase:     model.PhaseRunning,
		Params:    p,
		StartedAt: now,
		EndsAt:    now.Add(p.Duration),
	}
	run := s.launchLocked()
	s.mu.Unlock()

	s.persist()
	s.recordRunEvent(run, "")
	log.Info().Str("timeframe", string(p.Timeframe)).Str("amount", p.Amount.String()).
		Float64("threshold", p.Threshold).Time("ends_at", run.EndsAt).Msg("autopoll started")
	return run, nil
}

// Resume restarts a run that was interrupted by a crash or shutdown, if it
// has time left. Throttle state starts empty; stats and session PnL are kept.
func (s *Scheduler) Resume() bool {
	snap := s.store.Get()
	prior := snap.Run
	interrupted := prior.Running() || (prior.Phase == model.PhaseStopped && prior.StopReason == ReasonShutdown)
	if !interrupted || !s.now().Before(prior.EndsAt) || validateParams(prior.Params) != nil {
		return false
	}

	s.mu.Lock()
	if s.run.Running() {
		s.mu.Unlock()
		return false
	}
	s.throttle.Reset()
	s.run = prior
	s.run.Phase = model.PhaseRunning
	s.run.StopRequested = false
	s.run.StopReason = ""
	run := s.launchLocked()
	s.mu.Unlock()

	s.persist()
	s.recordRunEvent(run, "resumed")
	log.Info().Time("ends_at", run.EndsAt).Msg("autopoll resumed")
	return true
}

func (s *Scheduler) launchLocked() model.RunState {
	ctx, cancel := context.WithCancel(s.Ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.run, s.done)
	return s.run
}

// Stop ends the run on operator request.
func (s *Scheduler) Stop(reason string) (model.RunState, error) {
	if reason == "" {
		reason = "operator stop"
	}
	run, ok := s.end(model.PhaseStopped, reason)
	if !ok {
		return run, ErrNotRunning
	}
	return run, nil
}

// end applies a terminal transition if the run is still Running and cancels
// the loop. It reports false when the run had already ended.
func (s *Scheduler) end(phase model.RunPhase, reason string) (model.RunState, bool) {
	s.mu.Lock()
	if !s.run.Running() {
		run := s.run
		s.mu.Unlock()
		return run, false
	}
	s.run.Phase = phase
	s.run.StopReason = reason
	s.run.StopRequested = phase == model.PhaseStopped
	run := s.run
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.persist()
	s.recordRunEvent(run, reason)
	log.Info().Str("phase", string(phase)).Str("reason", reason).Int("signals", run.Signals).Msg("autopoll ended")
	return run, true
}

func (s *Scheduler) loop(ctx context.Context, run model.RunState, done chan struct{}) {
	defer close(done)

	sched, err := candleSchedule(run.Params.Timeframe)
	if err != nil {
		log.Error().Err(err).Msg("autopoll cannot schedule")
		s.end(model.PhaseStopped, err.Error())
		return
	}

	for {
		wake := nextWake(sched, s.now(), s.grace)
		expiring := !wake.Before(run.EndsAt)
		if expiring {
			wake = run.EndsAt
		}

		if err := s.wait(ctx, wake); err != nil {
			if s.Ctx.Err() != nil {
				s.end(model.PhaseStopped, ReasonShutdown)
			}
			return
		}
		if expiring || !s.now().Before(run.EndsAt) {
			if ended, ok := s.end(model.PhaseExpired, "duration elapsed"); ok {
				s.trySend(notifier.FormatRunEnded(ended))
			}
			return
		}

		s.cycle(ctx, run.Params)

		if ctx.Err() != nil {
			if s.Ctx.Err() != nil {
				s.end(model.PhaseStopped, ReasonShutdown)
			}
			return
		}
	}
}

// cycle makes one watchlist pass. A panic aborts only this pass.
func (s *Scheduler) cycle(ctx context.Context, p model.RunParams) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			metrics.CyclePanicsTotal.Inc()
			log.Error().Interface("panic", r).Msg("autopoll cycle aborted")
		}
		metrics.CycleDuration.Observe(time.Since(start).Seconds())
		s.mu.Lock()
		if s.run.Running() {
			s.run.Cycles++
		}
		s.mu.Unlock()
		s.persist()
	}()

	snap := s.store.Get()
	symbols := snap.EnabledSymbols()
	log.Debug().Strs("symbols", symbols).Str("timeframe", string(p.Timeframe)).Msg("cycle started")

	for i, sym := range symbols {
		if ctx.Err() != nil {
			return
		}

		ps, err := s.collector.Collect(ctx, sym, p.Timeframe)
		switch {
		case errors.Is(err, budget.ErrExhausted):
			metrics.BudgetDenialsTotal.Inc()
			s.budgetExhausted(symbols[i:])
			return
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			metrics.FetchFailuresTotal.WithLabelValues(sym).Inc()
			log.Warn().Err(err).Str("symbol", sym).Msg("no data this cycle")
			continue
		}

		s.evaluate(ctx, ps, p)
	}
}

func (s *Scheduler) budgetExhausted(skipped []string) {
	bs := s.budget.Snapshot()
	log.Warn().Int("hour_calls", bs.HourCalls).Int("day_calls", bs.DayCalls).
		Strs("skipped", skipped).Msg("call budget exhausted, pausing cycle")

	s.mu.Lock()
	// One notice per hour bucket.
	first := !s.budgetNotice.Equal(bs.HourBucket)
	s.budgetNotice = bs.HourBucket
	s.mu.Unlock()
	if first {
		s.trySend(notifier.FormatBudgetExhausted(bs, skipped))
	}
}

func (s *Scheduler) evaluate(ctx context.Context, ps *model.PriceSeries, p model.RunParams) {
	res := s.evaluator.Evaluate(ps)
	logger := log.With().Str("symbol", ps.Symbol).Str("timeframe", string(ps.Timeframe)).Logger()

	if !res.ShouldSignal {
		metrics.EvaluationsTotal.WithLabelValues(metrics.VerdictRejected).Inc()
		logger.Debug().Str("reason", res.Reason).Msg("skip")
		return
	}
	if res.Confidence < p.Threshold {
		metrics.EvaluationsTotal.WithLabelValues(metrics.VerdictBelowThreshold).Inc()
		logger.Debug().Float64("confidence", res.Confidence).Float64("threshold", p.Threshold).Msg("skip: below threshold")
		return
	}

	now := s.now()
	s.mu.Lock()
	if ctx.Err() != nil || !s.run.Running() {
		s.mu.Unlock()
		return
	}
	if !s.throttle.Allow(ps.Symbol, now) {
		s.mu.Unlock()
		metrics.EvaluationsTotal.WithLabelValues(metrics.VerdictThrottled).Inc()
		logger.Debug().Str("direction", string(res.Direction)).Msg("skip: cooldown")
		return
	}
	sig := model.Signal{
		ID:         uuid.NewString(),
		Symbol:     ps.Symbol,
		Direction:  res.Direction,
		Confidence: res.Confidence,
		Timeframe:  ps.Timeframe,
		Amount:     p.Amount,
		Time:       now,
		Reason:     res.Reason,
	}
	s.run.Signals++
	s.pending = append(s.pending, sig)
	if len(s.pending) > maxPending {
		s.pending = s.pending[len(s.pending)-maxPending:]
	}
	s.mu.Unlock()

	metrics.EvaluationsTotal.WithLabelValues(metrics.VerdictSignal).Inc()
	metrics.SignalsTotal.WithLabelValues(sig.Symbol, string(sig.Direction)).Inc()
	logger.Info().Str("id", sig.ID).Str("direction", string(sig.Direction)).
		Float64("confidence", sig.Confidence).Msg("signal emitted")

	s.deliver(&sig)
}

// deliver fans a signal out to the operator, history and stream. Failures are
// logged; the signal already counts as emitted.
// deliver hands a committed signal to every sink. Each sink call is bounded
// by deliverTimeout so a slow transport cannot hold up a stop.
func (s *Scheduler) deliver(sig *model.Signal) {
	ctx, cancel := context.WithTimeout(s.Ctx, s.deliverTimeout)
	err := s.notifier.SendSignal(ctx, sig)
	cancel()
	if err != nil {
		log.Error().Err(err).Str("symbol", sig.Symbol).Msg("send signal")
	}
	if err := s.recorder.RecordSignal(sig); err != nil {
		log.Error().Err(err).Msg("record signal")
	}
	ctx, cancel = context.WithTimeout(s.Ctx, s.deliverTimeout)
	err = s.publisher.Publish(ctx, sig)
	cancel()
	if err != nil {
		log.Error().Err(err).Msg("publish signal")
	}
}

// ReportOutcome records a result. signalID selects a specific pending signal;
// otherwise the latest pending signal for symbol (or any symbol when empty)
// is used. With nothing pending the run's stake is assumed.
func (s *Scheduler) ReportOutcome(symbol, signalID string, o model.Outcome) (model.Stats, stats.Trip, error) {
	sig, err := s.claimPending(symbol, signalID)
	if err != nil {
		return model.Stats{}, stats.Trip{}, err
	}

	st, trip := s.tracker.Record(o, sig.Amount)
	metrics.OutcomesTotal.WithLabelValues(string(o)).Inc()
	log.Info().Str("symbol", sig.Symbol).Str("outcome", string(o)).Int("loss_streak", st.ConsecutiveLosses).
		Str("session_pnl", st.SessionPnL.String()).Msg("outcome recorded")

	if err := s.recorder.RecordOutcome(&recorder.OutcomeEvent{
		SignalID: sig.ID, Symbol: sig.Symbol, Outcome: o, Amount: sig.Amount, Stats: st,
	}); err != nil {
		log.Error().Err(err).Msg("record outcome")
	}
	s.persist()

	if trip.Tripped {
		log.Warn().Str("reason", trip.Reason).Msg("guardrail tripped")
		if ended, ok := s.end(model.PhaseGuardrailTripped, trip.Reason); ok {
			s.trySend(notifier.FormatRunEnded(ended))
		}
	}
	return st, trip, nil
}

func (s *Scheduler) claimPending(symbol, signalID string) (model.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.pending) - 1; i >= 0; i-- {
		p := s.pending[i]
		if (signalID != "" && p.ID == signalID) || (signalID == "" && (symbol == "" || p.Symbol == symbol)) {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return p, nil
		}
	}
	if signalID != "" {
		return model.Signal{}, fmt.Errorf("signal %s already reported or unknown", signalID)
	}

	amount := s.run.Params.Amount
	if amount.IsZero() {
		amount = s.store.Get().Amount
	}
	return model.Signal{Symbol: symbol, Amount: amount}, nil
}

func (s *Scheduler) dailySummary() {
	prev, ok := s.tracker.Previous()
	if !ok {
		log.Debug().Msg("daily summary: no completed day yet")
		return
	}
	s.persist()
	s.trySend(notifier.FormatStats("Daily summary", prev))
}

// persist writes the run and stats into the snapshot.
func (s *Scheduler) persist() {
	run := s.Run()
	st := s.tracker.Snapshot()
	_ = s.store.Update(func(snap *state.Snapshot) {
		snap.Run = run
		snap.Running = run.Running()
		snap.Stats = st
	})
}

func (s *Scheduler) recordRunEvent(run model.RunState, reason string) {
	if err := s.recorder.RecordRunEvent(&recorder.RunEvent{Phase: run.Phase, Reason: reason, Params: run.Params}); err != nil {
		log.Error().Err(err).Msg("record run event")
	}
}

type retrier interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

func (s *Scheduler) trySend(text string) {
	ctx, cancel := context.WithTimeout(s.Ctx, s.deliverTimeout)
	defer cancel()

	var err error
	if r, ok := s.notifier.(retrier); ok {
		err = r.SendWithRetry(ctx, text, 2)
	} else {
		err = s.notifier.Send(ctx, text)
	}
	if err != nil {
		log.Error().Err(err).Msg("send notification")
	}
}

func validateParams(p model.RunParams) error {
	switch {
	case !p.Timeframe.Valid():
		return fmt.Errorf("unsupported timeframe %q", p.Timeframe)
	case !p.Amount.IsPositive():
		return errors.New("amount must be positive")
	case p.Threshold < 0 || p.Threshold > 1:
		return errors.New("threshold must be between 0 and 1")
	case p.Duration <= 0:
		return errors.New("duration must be positive")
	}
	return nil
}

// LogNotifier writes notifications to the log. Used when Telegram is off.
type LogNotifier struct{}

func (LogNotifier) Send(_ context.Context, text string) error {
	log.Info().Str("message", text).Msg("notification")
	return nil
}

func (LogNotifier) SendSignal(_ context.Context, sig *model.Signal) error {
	log.Info().Str("id", sig.ID).Str("symbol", sig.Symbol).Str("direction", string(sig.Direction)).
		Float64("confidence", sig.Confidence).Msg("signal")
	return nil
}
