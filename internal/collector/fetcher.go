package collector

import (
	"context"
	"errors"

	"SignalPulse/internal/model"
)

// ErrUnavailable means the provider returned no usable data: missing or
// malformed payload, provider error, or timeout. Callers skip the instrument
// for this cycle.
var ErrUnavailable = errors.New("market data unavailable")

// Fetcher retrieves a bounded window of ascending OHLC bars. Implementations
// never retry, cache or rate limit.
type Fetcher interface {
	FetchBars(ctx context.Context, symbol string, tf model.Timeframe, count int) ([]model.Bar, error)
	Name() string
}
