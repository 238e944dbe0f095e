// Package state persists operator settings between restarts.
package state

import (
	"os"
	"sync"

	"github.com/rs/zerolog/log"

	"SignalPulse/internal/model"
)

// Store guards the snapshot and writes it after every mutation.
type Store struct {
	mu       sync.Mutex
	snap     *Snapshot
	filePath string
}

// NewStore loads filePath and writes the result back so the file always
// reflects the effective settings. A fresh file takes every default. A saved
// file keeps its values, including zeros an operator chose (a disabled
// guardrail, a zero threshold); only fields that cannot be zero are filled.
func NewStore(filePath string, defaults Snapshot) (*Store, error) {
	_, statErr := os.Stat(filePath)
	fresh := os.IsNotExist(statErr)

	snap, err := LoadState(filePath)
	if err != nil {
		return nil, err
	}

	if fresh {
		snap.Threshold = defaults.Threshold
		snap.LossStreakStop = defaults.LossStreakStop
	}
	if len(snap.Watchlist) == 0 {
		snap.Watchlist = append(snap.Watchlist, defaults.Watchlist...)
	}
	if snap.Timeframe == "" {
		snap.Timeframe = defaults.Timeframe
	}
	if snap.Amount.IsZero() {
		snap.Amount = defaults.Amount
	}
	if snap.DurationMinutes == 0 {
		snap.DurationMinutes = defaults.DurationMinutes
	}

	s := &Store{snap: snap, filePath: filePath}
	if err := s.save(); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns a copy of the current snapshot.
func (s *Store) Get() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.snap
	cp.Watchlist = append([]model.InstrumentConfig(nil), s.snap.Watchlist...)
	if s.snap.CallCaps != nil {
		caps := *s.snap.CallCaps
		cp.CallCaps = &caps
	}
	return cp
}

// Update applies fn and persists the result. A failed write is logged and
// returned; the in-memory change is kept.
func (s *Store) Update(fn func(*Snapshot)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.snap)
	if err := s.save(); err != nil {
		log.Error().Err(err).Str("path", s.filePath).Msg("save state snapshot")
		return err
	}
	return nil
}

func (s *Store) save() error {
	return SaveState(s.filePath, s.snap)
}
