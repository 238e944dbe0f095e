package model

import (
	"fmt"
	"strings"
	"time"
)

// Bar is a single OHLC candle. Time is the candle open time in UTC.
type Bar struct {
	Time  time.Time `json:"time"`
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
}

// Timeframe is a candle resolution in the provider's notation ("5min", "1h").
type Timeframe string

const (
	TF1m  Timeframe = "1min"
	TF5m  Timeframe = "5min"
	TF15m Timeframe = "15min"
	TF30m Timeframe = "30min"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
)

var timeframeMinutes = map[Timeframe]int{
	TF1m:  1,
	TF5m:  5,
	TF15m: 15,
	TF30m: 30,
	TF1h:  60,
	TF4h:  240,
}

// ParseTimeframe accepts the canonical names plus the short forms operators
// tend to type ("5m", "m5", "15").
func ParseTimeframe(s string) (Timeframe, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "1", "1m", "m1", "1min":
		return TF1m, nil
	case "5", "5m", "m5", "5min":
		return TF5m, nil
	case "15", "15m", "m15", "15min":
		return TF15m, nil
	case "30", "30m", "m30", "30min":
		return TF30m, nil
	case "60", "60m", "h1", "1h":
		return TF1h, nil
	case "240", "h4", "4h":
		return TF4h, nil
	}
	return "", fmt.Errorf("unsupported timeframe %q", s)
}

// Minutes returns the candle length in minutes, or 0 for an unknown timeframe.
func (tf Timeframe) Minutes() int {
	return timeframeMinutes[tf]
}

// Duration returns the candle length.
func (tf Timeframe) Duration() time.Duration {
	return time.Duration(tf.Minutes()) * time.Minute
}

// Valid reports whether tf is a supported resolution.
func (tf Timeframe) Valid() bool {
	return tf.Minutes() > 0
}

// Times returns the resolution k times coarser than tf. The result may not be
// one of the named constants (5min x 3 = "15min", 15min x 3 = "45min").
func (tf Timeframe) Times(k int) Timeframe {
	m := tf.Minutes() * k
	if m%60 == 0 {
		return Timeframe(fmt.Sprintf("%dh", m/60))
	}
	return Timeframe(fmt.Sprintf("%dmin", m))
}

// InstrumentConfig is one watchlist entry.
type InstrumentConfig struct {
	Symbol    string    `json:"symbol"`
	Timeframe Timeframe `json:"timeframe"`
	Enabled   bool      `json:"enabled"`
}

// PriceSeries is one instrument's sample for a scheduler cycle: primary bars
// plus the derived higher timeframe.
type PriceSeries struct {
	Symbol     string
	Timeframe  Timeframe
	Higher     Timeframe
	Bars       []Bar
	HigherBars []Bar
	FetchedAt  time.Time
}
