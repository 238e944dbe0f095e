package recorder

import (
	"github.com/shopspring/decimal"

	"SignalPulse/internal/model"
)

// OutcomeEvent is an operator-reported result for a signal.
type OutcomeEvent struct {
	SignalID string
	Symbol   string
	Outcome  model.Outcome
	Amount   decimal.Decimal
	Stats    model.Stats
}

// RunEvent records an autopoll lifecycle transition.
type RunEvent struct {
	Phase  model.RunPhase
	Reason string
	Params model.RunParams
}

// Recorder persists signal history for later analysis.
type Recorder interface {
	RecordSignal(sig *model.Signal) error
	RecordOutcome(evt *OutcomeEvent) error
	RecordRunEvent(evt *RunEvent) error
	Close() error
}
