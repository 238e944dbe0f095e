package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the side of a trade signal.
type Direction string

const (
	DirectionNone Direction = ""
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// EvaluationResult is produced fresh by every evaluation and never persisted.
type EvaluationResult struct {
	ShouldSignal bool
	Direction    Direction
	Confidence   float64
	UpVotes      int
	DownVotes    int
	Reason       string
}

// Signal is the engine's terminal output. It is immutable once emitted.
type Signal struct {
	ID         string          `json:"id"`
	Symbol     string          `json:"symbol"`
	Direction  Direction       `json:"direction"`
	Confidence float64         `json:"confidence"`
	Timeframe  Timeframe       `json:"timeframe"`
	Amount     decimal.Decimal `json:"amount"`
	Time       time.Time       `json:"time"`
	Reason     string          `json:"reason"`
}
