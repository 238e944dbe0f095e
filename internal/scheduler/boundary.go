package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"SignalPulse/internal/model"
)

var boundaryParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// candleSchedule fires at every close of tf, in UTC.
func candleSchedule(tf model.Timeframe) (cron.Schedule, error) {
	m := tf.Minutes()
	var spec string
	switch {
	case m <= 0:
		return nil, fmt.Errorf("unsupported timeframe %q", tf)
	case m < 60:
		spec = fmt.Sprintf("0 */%d * * * *", m)
	case m%60 == 0 && m <= 24*60:
		spec = fmt.Sprintf("0 0 */%d * * *", m/60)
	default:
		return nil, fmt.Errorf("timeframe %q does not divide a day", tf)
	}
	return boundaryParser.Parse("CRON_TZ=UTC " + spec)
}

// nextWake returns the first candle close after now, plus grace. A close
// that happened less than grace ago still counts.
func nextWake(sched cron.Schedule, now time.Time, grace time.Duration) time.Time {
	return sched.Next(now.Add(-grace)).Add(grace)
}

// waitUntil blocks until t or until ctx is cancelled.
func waitUntil(ctx context.Context, now func() time.Time, t time.Time) error {
	d := t.Sub(now())
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
