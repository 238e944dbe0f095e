package recorder

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"SignalPulse/internal/model"
)

// SQLiteRecorder persists historical data to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets dashboards read while the bot writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS signals (
			id         TEXT PRIMARY KEY,
			timestamp  INTEGER NOT NULL,
			symbol     TEXT NOT NULL,
			direction  TEXT NOT NULL,
			confidence REAL,
			timeframe  TEXT,
			amount     TEXT,
			reason     TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_ts ON signals(timestamp)`,

		`CREATE TABLE IF NOT EXISTS outcomes (
			id                 INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp          INTEGER NOT NULL,
			signal_id          TEXT,
			symbol             TEXT,
			outcome            TEXT NOT NULL,
			amount             TEXT,
			wins               INTEGER,
			losses             INTEGER,
			skips              INTEGER,
			consecutive_losses INTEGER,
			session_pnl        TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_ts ON outcomes(timestamp)`,

		`CREATE TABLE IF NOT EXISTS run_events (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			phase     TEXT NOT NULL,
			reason    TEXT,
			amount    TEXT,
			threshold REAL,
			timeframe TEXT,
			duration  INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_run_events_ts ON run_events(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordSignal(sig *model.Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO signals
		(id, timestamp, symbol, direction, confidence, timeframe, amount, reason)
		VALUES (?,?,?,?,?,?,?,?)`,
		sig.ID, sig.Time.Unix(), sig.Symbol, string(sig.Direction), sig.Confidence,
		string(sig.Timeframe), sig.Amount.String(), sig.Reason,
	)
	return err
}

func (r *SQLiteRecorder) RecordOutcome(evt *OutcomeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO outcomes
		(timestamp, signal_id, symbol, outcome, amount, wins, losses, skips, consecutive_losses, session_pnl)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		time.Now().Unix(), evt.SignalID, evt.Symbol, string(evt.Outcome), evt.Amount.String(),
		evt.Stats.Wins, evt.Stats.Losses, evt.Stats.Skips, evt.Stats.ConsecutiveLosses,
		evt.Stats.SessionPnL.String(),
	)
	return err
}

func (r *SQLiteRecorder) RecordRunEvent(evt *RunEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO run_events
		(timestamp, phase, reason, amount, threshold, timeframe, duration)
		VALUES (?,?,?,?,?,?,?)`,
		time.Now().Unix(), string(evt.Phase), evt.Reason, evt.Params.Amount.String(),
		evt.Params.Threshold, string(evt.Params.Timeframe), int64(evt.Params.Duration/time.Second),
	)
	return err
}

// CountSignals returns how many signals were stored for symbol.
func (r *SQLiteRecorder) CountSignals(symbol string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM signals WHERE symbol = ?`, symbol).Scan(&n)
	return n, err
}

func (r *SQLiteRecorder) Close() error {
	log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
