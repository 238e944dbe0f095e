package collector

import (
	"time"

	"SignalPulse/internal/model"
)

// Aggregate compresses ascending bars of resolution base into buckets factor
// times longer. Bucket open time is the bar time floored to a multiple of the
// bucket length since the Unix epoch. Open comes from the first bar, Close from
// the last, High/Low are the extremes. The final bucket is dropped while its
// last slot has not been seen yet, and the result keeps at most maxBuckets of
// the most recent buckets (0 keeps all).
func Aggregate(bars []model.Bar, base model.Timeframe, factor, maxBuckets int) []model.Bar {
	if len(bars) == 0 || factor <= 0 || !base.Valid() {
		return nil
	}
	span := base.Duration() * time.Duration(factor)
	spanSec := int64(span / time.Second)

	var out []model.Bar
	for _, b := range bars {
		unix := b.Time.Unix()
		start := time.Unix(unix-floorMod(unix, spanSec), 0).UTC()

		if n := len(out); n > 0 && out[n-1].Time.Equal(start) {
			cur := &out[n-1]
			if b.High > cur.High {
				cur.High = b.High
			}
			if b.Low < cur.Low {
				cur.Low = b.Low
			}
			cur.Close = b.Close
			continue
		}
		out = append(out, model.Bar{Time: start, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close})
	}

	last := bars[len(bars)-1]
	if n := len(out); last.Time.Add(base.Duration()).Before(out[n-1].Time.Add(span)) {
		out = out[:n-1]
	}
	if maxBuckets > 0 && len(out) > maxBuckets {
		out = out[len(out)-maxBuckets:]
	}
	return out
}

func floorMod(a, m int64) int64 {
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}
