package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RunPhase is the autopoll lifecycle state.
type RunPhase string

const (
	PhaseIdle             RunPhase = "IDLE"
	PhaseRunning          RunPhase = "RUNNING"
	PhaseStopped          RunPhase = "STOPPED"
	PhaseGuardrailTripped RunPhase = "GUARDRAIL_TRIPPED"
	PhaseExpired          RunPhase = "EXPIRED"
)

// Terminal reports whether p can only be left by a fresh start command.
func (p RunPhase) Terminal() bool {
	return p == PhaseStopped || p == PhaseGuardrailTripped || p == PhaseExpired
}

// RunParams are the operator's start command arguments.
type RunParams struct {
	Amount    decimal.Decimal `json:"amount"`
	Threshold float64         `json:"threshold"`
	Timeframe Timeframe       `json:"timeframe"`
	Duration  time.Duration   `json:"duration"`
}

// RunState describes the current or last autopoll run.
type RunState struct {
	Phase         RunPhase  `json:"phase"`
	Params        RunParams `json:"params"`
	StartedAt     time.Time `json:"started_at"`
	EndsAt        time.Time `json:"ends_at"`
	StopRequested bool      `json:"stop_requested"`
	StopReason    string    `json:"stop_reason,omitempty"`
	Cycles        int       `json:"cycles"`
	Signals       int       `json:"signals"`
}

// Running reports whether the loop is active.
func (r RunState) Running() bool {
	return r.Phase == PhaseRunning
}
