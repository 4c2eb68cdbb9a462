// Package persistence provides SQLite storage for session history: one row
// per run, the lifecycle events it produced, and the final agent roster.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/ncruces/go-strftime"
	_ "modernc.org/sqlite"

	"github.com/wct097/saintaveline/internal/agents"
	"github.com/wct097/saintaveline/internal/engine"
)

// ErrNotFound is returned for lookups that match nothing.
var ErrNotFound = errors.New("persistence: not found")

// DB wraps a SQLite connection.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
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
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL,
		seed INTEGER NOT NULL,
		scenario TEXT NOT NULL,
		started_at TEXT NOT NULL,
		ended_at TEXT,
		frames INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		frame INTEGER NOT NULL,
		time REAL NOT NULL,
		category TEXT NOT NULL,
		agent_id INTEGER NOT NULL,
		agent_name TEXT NOT NULL,
		state TEXT NOT NULL,
		description TEXT NOT NULL,
		meta_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agents (
		session_id TEXT NOT NULL,
		id INTEGER NOT NULL,
		name TEXT NOT NULL,
		archetype TEXT NOT NULL,
		kind TEXT NOT NULL,
		state TEXT NOT NULL,
		health REAL NOT NULL,
		comfort REAL NOT NULL,
		calmness REAL NOT NULL,
		dead INTEGER NOT NULL,
		snapshot_json TEXT NOT NULL,
		PRIMARY KEY (session_id, id)
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id, seq);
	CREATE INDEX IF NOT EXISTS idx_events_category ON events(category);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Session is one run of the simulation.
type Session struct {
	ID        string         `db:"id" json:"id"`
	Label     string         `db:"label" json:"label"`
	Seed      int64          `db:"seed" json:"seed"`
	Scenario  string         `db:"scenario" json:"scenario"`
	StartedAt string         `db:"started_at" json:"started_at"`
	EndedAt   sql.NullString `db:"ended_at" json:"-"`
	Frames    uint64         `db:"frames" json:"frames"`
}

// BeginSession records the start of a run. The label is the start time in
// a sortable, file-name-safe form.
func (db *DB) BeginSession(seed int64, scenario string, now time.Time) (Session, error) {
	s := Session{
		ID:        uuid.NewString(),
		Label:     strftime.Format("%Y%m%d-%H%M%S", now),
		Seed:      seed,
		Scenario:  scenario,
		StartedAt: now.UTC().Format(time.RFC3339),
	}
	_, err := db.conn.NamedExec(`INSERT INTO sessions (id, label, seed, scenario, started_at, frames)
		VALUES (:id, :label, :seed, :scenario, :started_at, 0)`, s)
	if err != nil {
		return Session{}, fmt.Errorf("begin session: %w", err)
	}
	slog.Info("session started", "session", s.ID, "label", s.Label, "seed", seed)
	return s, nil
}

// EndSession stamps the end time and frame count.
func (db *DB) EndSession(id string, frames uint64, now time.Time) error {
	res, err := db.conn.Exec("UPDATE sessions SET ended_at = ?, frames = ? WHERE id = ?",
		now.UTC().Format(time.RFC3339), frames, id)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("end session %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetSession loads one session.
func (db *DB) GetSession(id string) (Session, error) {
	var s Session
	err := db.conn.Get(&s, "SELECT * FROM sessions WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return s, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return s, err
}

// Sessions returns the most recent sessions, newest first.
func (db *DB) Sessions(limit int) ([]Session, error) {
	var out []Session
	err := db.conn.Select(&out, "SELECT * FROM sessions ORDER BY started_at DESC, rowid DESC LIMIT ?", limit)
	return out, err
}

// EventRow is a stored lifecycle event.
type EventRow struct {
	SessionID   string  `db:"session_id" json:"session_id"`
	Seq         uint64  `db:"seq" json:"seq"`
	Frame       uint64  `db:"frame" json:"frame"`
	Time        float64 `db:"time" json:"time"`
	Category    string  `db:"category" json:"category"`
	AgentID     uint64  `db:"agent_id" json:"agent_id"`
	AgentName   string  `db:"agent_name" json:"agent_name"`
	State       string  `db:"state" json:"state"`
	Description string  `db:"description" json:"description"`
	MetaJSON    string  `db:"meta_json" json:"meta"`
}

// SaveEvents appends events for a session.
func (db *DB) SaveEvents(sessionID string, events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT INTO events
		(session_id, seq, frame, time, category, agent_id, agent_name, state, description, meta_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		meta := []byte("{}")
		if len(e.Meta) > 0 {
			if meta, err = json.Marshal(e.Meta); err != nil {
				return fmt.Errorf("event %d meta: %w", e.Seq, err)
			}
		}
		if _, err := stmt.Exec(sessionID, e.Seq, e.Frame, e.Time, e.Category,
			uint64(e.AgentID), e.AgentName, e.State, e.Description, string(meta)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecentEvents returns a session's most recent events, newest first. An
// empty category matches all.
func (db *DB) RecentEvents(sessionID, category string, limit int) ([]EventRow, error) {
	var events []EventRow
	err := db.conn.Select(&events, `SELECT session_id, seq, frame, time, category, agent_id,
			agent_name, state, description, meta_json
		FROM events
		WHERE session_id = ? AND (? = '' OR category = ?)
		ORDER BY seq DESC LIMIT ?`,
		sessionID, category, category, limit,
	)
	return events, err
}

// CountEvents tallies a session's events by category.
func (db *DB) CountEvents(sessionID string) (map[string]int, error) {
	var rows []struct {
		Category string `db:"category"`
		N        int    `db:"n"`
	}
	err := db.conn.Select(&rows,
		"SELECT category, COUNT(*) AS n FROM events WHERE session_id = ? GROUP BY category", sessionID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.Category] = r.N
	}
	return out, nil
}

// SaveAgents replaces the stored roster for a session.
func (db *DB) SaveAgents(sessionID string, roster []agents.Snapshot) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM agents WHERE session_id = ?", sessionID); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO agents
		(session_id, id, name, archetype, kind, state, health, comfort, calmness, dead, snapshot_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range roster {
		snap, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("agent %d: %w", a.ID, err)
		}
		dead := 0
		if a.Dead {
			dead = 1
		}
		if _, err := stmt.Exec(sessionID, uint64(a.ID), a.Name, a.Archetype, a.Kind, a.State,
			a.Health, a.Comfort, a.Calmness, dead, string(snap)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LoadAgents returns the stored roster for a session.
func (db *DB) LoadAgents(sessionID string) ([]agents.Snapshot, error) {
	var blobs []string
	if err := db.conn.Select(&blobs,
		"SELECT snapshot_json FROM agents WHERE session_id = ? ORDER BY id", sessionID); err != nil {
		return nil, err
	}
	out := make([]agents.Snapshot, 0, len(blobs))
	for _, b := range blobs {
		var s agents.Snapshot
		if err := json.Unmarshal([]byte(b), &s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("meta %q: %w", key, ErrNotFound)
	}
	return value, err
}
