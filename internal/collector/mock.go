package collector

import (
	"context"
	"sync"
	"time"

	"SignalPulse/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	mu    sync.Mutex
	Bars  map[string][]model.Bar
	Err   error
	Delay time.Duration
	Calls int
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchBars(ctx context.Context, symbol string, _ model.Timeframe, count int) ([]model.Bar, error) {
	m.mu.Lock()
	m.Calls++
	bars, err, delay := m.Bars[symbol], m.Err, m.Delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ErrUnavailable
		case <-time.After(delay):
		}
	}
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, ErrUnavailable
	}
	if len(bars) > count {
		bars = bars[len(bars)-count:]
	}
	out := make([]model.Bar, len(bars))
	copy(out, bars)
	return out, nil
}

// CallCount returns how many fetches were attempted.
func (m *MockFetcher) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

// GenerateMockBars builds count ascending bars ending just before end, moving
// by step per bar.
func GenerateMockBars(basePrice, step float64, tf model.Timeframe, count int, end time.Time) []model.Bar {
	bars := make([]model.Bar, count)
	first := end.Add(-time.Duration(count) * tf.Duration())
	for i := 0; i < count; i++ {
		p := basePrice + float64(i)*step
		bars[i] = model.Bar{
			Time:  first.Add(time.Duration(i) * tf.Duration()),
			Open:  p - step/2,
			High:  p + basePrice*0.001,
			Low:   p - basePrice*0.001,
			Close: p,
		}
	}
	return bars
}
