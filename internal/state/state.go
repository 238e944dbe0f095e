package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"SignalPulse/internal/model"
)

// SnapshotVersion is the current on-disk schema version.
const SnapshotVersion = 1

// Snapshot is the persisted configuration: enough to resume settings after a
// restart. Throttle and call budget counters are deliberately absent.
type Snapshot struct {
	Version         int                      `json:"version"`
	Watchlist       []model.InstrumentConfig `json:"watchlist"`
	Timeframe       model.Timeframe          `json:"timeframe"`
	Amount          decimal.Decimal          `json:"amount"`
	Threshold       float64                  `json:"threshold"`
	DurationMinutes int                      `json:"duration_minutes"`
	LossStreakStop  int                      `json:"loss_streak_stop"`
	CallCaps        *CallCaps                `json:"call_caps,omitempty"`
	Running         bool                     `json:"running"`
	Run             model.RunState           `json:"run"`
	Stats           model.Stats              `json:"stats"`
	UpdatedAt       time.Time                `json:"updated_at"`
}

// CallCaps are provider call caps set by the operator. When absent the
// configured caps apply.
type CallCaps struct {
	PerHour int `json:"per_hour"`
	PerDay  int `json:"per_day"`
}

// Duration returns the default run length.
func (s *Snapshot) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// EnabledSymbols lists the watchlist entries that are switched on.
func (s *Snapshot) EnabledSymbols() []string {
	var out []string
	for _, in := range s.Watchlist {
		if in.Enabled {
			out = append(out, in.Symbol)
		}
	}
	return out
}

// LoadState reads a snapshot from a JSON file. A missing file yields a zero
// snapshot at the current version.
func LoadState(filePath string) (*Snapshot, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Snapshot{Version: SnapshotVersion}, nil
		}
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	switch {
	case snap.Version == 0:
		// written before versioning; fields are compatible
		snap.Version = SnapshotVersion
	case snap.Version > SnapshotVersion:
		return nil, fmt.Errorf("snapshot version %d is newer than supported %d", snap.Version, SnapshotVersion)
	}
	return &snap, nil
}

// SaveState writes the snapshot through a temp file and rename so a crash
// never leaves a truncated file behind.
func SaveState(filePath string, snap *Snapshot) error {
	snap.Version = SnapshotVersion
	snap.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(filePath)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filePath)
}
