// Package persistence records simulation runs in SQLite: one row per run,
// the news each run produced and periodic samples of how far the rumour
// had spread.
package persistence

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/damage-control/internal/engine"
)

// DB wraps a SQLite connection for run records.
type DB struct {
	conn *sqlx.DB
}

// Run is one recorded simulation.
type Run struct {
	ID          string     `db:"id" json:"id"`
	Seed        int64      `db:"seed" json:"seed"`
	People      int        `db:"people" json:"people"`
	Connections int        `db:"connections" json:"connections"`
	Fact        string     `db:"fact" json:"fact"`
	StartedAt   time.Time  `db:"started_at" json:"started_at"`
	FinishedAt  *time.Time `db:"finished_at" json:"finished_at,omitempty"`
	FinalTick   uint64     `db:"final_tick" json:"final_tick"`
	Informed    int        `db:"informed" json:"informed"`
}

// Sample is the spread of the rumour at one tick.
type Sample struct {
	Tick          uint64  `db:"tick" json:"tick"`
	Informed      int     `db:"informed" json:"informed"`
	Influence     float64 `db:"influence" json:"influence"`
	ActiveActions int     `db:"active_actions" json:"active_actions"`
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		people INTEGER NOT NULL,
		connections INTEGER NOT NULL,
		fact TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		final_tick INTEGER NOT NULL DEFAULT 0,
		informed INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		tick INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS samples (
		run_id TEXT NOT NULL REFERENCES runs(id),
		tick INTEGER NOT NULL,
		informed INTEGER NOT NULL,
		influence REAL NOT NULL,
		active_actions INTEGER NOT NULL,
		PRIMARY KEY (run_id, tick)
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_run_tick ON events(run_id, tick);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// BeginRun records the start of a run and returns its id.
func (db *DB) BeginRun(seed int64, people, connections int, fact string) (string, error) {
	id := uuid.NewString()
	_, err := db.conn.Exec(
		"INSERT INTO runs (id, seed, people, connections, fact, started_at) VALUES (?, ?, ?, ?, ?, ?)",
		id, seed, people, connections, fact, time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	slog.Debug("run recorded", "run", id, "seed", seed)
	return id, nil
}

// FinishRun stores the final state of a run.
func (db *DB) FinishRun(runID string, tick uint64, informed int) error {
	res, err := db.conn.Exec(
		"UPDATE runs SET finished_at = ?, final_tick = ?, informed = ? WHERE id = ?",
		time.Now().UTC(), tick, informed, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run: no run %s", runID)
	}
	return nil
}

// SaveEvents appends events to a run.
func (db *DB) SaveEvents(runID string, events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex("INSERT INTO events (run_id, tick, description, category) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.Exec(runID, e.Tick, e.Description, e.Category); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SaveSample stores one sample, replacing any earlier sample at that tick.
func (db *DB) SaveSample(runID string, s Sample) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO samples (run_id, tick, informed, influence, active_actions) VALUES (?, ?, ?, ?, ?)",
		runID, s.Tick, s.Informed, s.Influence, s.ActiveActions,
	)
	return err
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	return value, err
}

// RecentEvents returns the most recent N events of a run, newest first.
func (db *DB) RecentEvents(runID string, limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT tick, description, category FROM events WHERE run_id = ? ORDER BY id DESC LIMIT ?",
		runID, limit,
	)
	return events, err
}

// Samples returns every sample of a run in tick order.
func (db *DB) Samples(runID string) ([]Sample, error) {
	var samples []Sample
	err := db.conn.Select(&samples,
		"SELECT tick, informed, influence, active_actions FROM samples WHERE run_id = ? ORDER BY tick",
		runID,
	)
	return samples, err
}

// Run returns one run by id.
func (db *DB) Run(runID string) (Run, error) {
	var r Run
	err := db.conn.Get(&r, "SELECT * FROM runs WHERE id = ?", runID)
	return r, err
}

// Runs returns the latest runs, newest first.
func (db *DB) Runs(limit int) ([]Run, error) {
	var runs []Run
	err := db.conn.Select(&runs, "SELECT * FROM runs ORDER BY started_at DESC LIMIT ?", limit)
	return runs, err
}
