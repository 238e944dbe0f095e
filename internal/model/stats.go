package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Outcome is the operator's verdict on an emitted signal.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
	OutcomeSkip Outcome = "skip"
)

// ParseOutcome maps operator input to an Outcome.
func ParseOutcome(s string) (Outcome, error) {
	switch Outcome(strings.ToLower(strings.TrimSpace(s))) {
	case OutcomeWin:
		return OutcomeWin, nil
	case OutcomeLoss:
		return OutcomeLoss, nil
	case OutcomeSkip:
		return OutcomeSkip, nil
	}
	return "", fmt.Errorf("unknown outcome %q", s)
}

// Stats counts reported outcomes for one UTC day. ConsecutiveWins and
// ConsecutiveLosses are never both nonzero.
type Stats struct {
	Day               string          `json:"day"`
	Wins              int             `json:"wins"`
	Losses            int             `json:"losses"`
	Skips             int             `json:"skips"`
	ConsecutiveWins   int             `json:"consecutive_wins"`
	ConsecutiveLosses int             `json:"consecutive_losses"`
	SessionPnL        decimal.Decimal `json:"session_pnl"`
}

// WinRate returns wins/(wins+losses), or 0 when nothing was decided.
func (s Stats) WinRate() float64 {
	decided := s.Wins + s.Losses
	if decided == 0 {
		return 0
	}
	return float64(s.Wins) / float64(decided)
}
