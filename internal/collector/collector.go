package collector

import (
	"context"
	"fmt"
	"time"

	"SignalPulse/internal/budget"
	"SignalPulse/internal/model"
)

// Admitter gates provider calls.
type Admitter interface {
	Admit() bool
}

// Options tune one Collector.
type Options struct {
	BarCount   int
	HTFFactor  int
	MaxHTFBars int
	Timeout    time.Duration
	CloseOnly  bool
}

// Collector admits each fetch through the call budget, bounds it with a
// timeout and derives the higher timeframe.
type Collector struct {
	Fetcher Fetcher
	Budget  Admitter
	Opts    Options
	now     func() time.Time
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, gate Admitter, opts Options) *Collector {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.HTFFactor <= 0 {
		opts.HTFFactor = 3
	}
	return &Collector{Fetcher: fetcher, Budget: gate, Opts: opts, now: time.Now}
}

// WithClock replaces the wall clock, for tests.
func (c *Collector) WithClock(now func() time.Time) *Collector {
	c.now = now
	return c
}

// Collect fetches one instrument. It returns budget.ErrExhausted without
// touching the provider when admission is denied, and an error wrapping
// ErrUnavailable when the provider gives nothing usable.
func (c *Collector) Collect(ctx context.Context, symbol string, tf model.Timeframe) (*model.PriceSeries, error) {
	if !c.Budget.Admit() {
		return nil, budget.ErrExhausted
	}

	fetchCtx, cancel := context.WithTimeout(ctx, c.Opts.Timeout)
	defer cancel()

	bars, err := c.Fetcher.FetchBars(fetchCtx, symbol, tf, c.Opts.BarCount)
	if err != nil {
		return nil, fmt.Errorf("fetch %s %s: %w", symbol, tf, err)
	}
	bars = normalizeBars(bars)

	now := c.now()
	if c.Opts.CloseOnly {
		// drop the forming candle
		for len(bars) > 0 && bars[len(bars)-1].Time.Add(tf.Duration()).After(now) {
			bars = bars[:len(bars)-1]
		}
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("fetch %s %s: %w", symbol, tf, ErrUnavailable)
	}

	return &model.PriceSeries{
		Symbol:     symbol,
		Timeframe:  tf,
		Higher:     tf.Times(c.Opts.HTFFactor),
		Bars:       bars,
		HigherBars: Aggregate(bars, tf, c.Opts.HTFFactor, c.Opts.MaxHTFBars),
		FetchedAt:  now,
	}, nil
}
