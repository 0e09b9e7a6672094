package state

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS restarts (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    safe_pane   TEXT NOT NULL,
    pane        TEXT NOT NULL DEFAULT '',
    agent       TEXT NOT NULL DEFAULT '',
    host        TEXT NOT NULL DEFAULT '',
    ok          INTEGER NOT NULL DEFAULT 1,
    error       TEXT NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS restarts_pane_time ON restarts (safe_pane, created_at);
`

// Restart is one invocation of the monitor control script.
type Restart struct {
	ID       int64
	SafePane string
	Pane     string
	Agent    string
	Host     string
	OK       bool
	Error    string
	At       time.Time
}

// Store wraps a SQLite database of restart events.
type Store struct {
	db *sql.DB
}

// DefaultPath returns $XDG_STATE_HOME/flywatch/state.db.
func DefaultPath() (string, error) {
	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		stateHome = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(stateHome, "flywatch", "state.db"), nil
}

// Open creates or opens the state database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// WAL mode: the dashboard reads while the watchdog writes
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRestart stores a restart event. A zero At is stamped with the current time.
func (s *Store) RecordRestart(r Restart) error {
	if r.At.IsZero() {
		r.At = time.Now()
	}
	ok := 0
	if r.OK {
		ok = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO restarts (safe_pane, pane, agent, host, ok, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.SafePane, r.Pane, r.Agent, r.Host, ok, r.Error, r.At.UnixNano())
	return err
}

// CountSince returns how many restarts of safePane happened at or after since.
func (s *Store) CountSince(safePane string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM restarts
		WHERE safe_pane = ? AND created_at >= ?
	`, safePane, since.UnixNano()).Scan(&n)
	return n, err
}

// LastRestarts returns the most recent restart time per safe pane.
func (s *Store) LastRestarts() (map[string]time.Time, error) {
	rows, err := s.db.Query("SELECT safe_pane, MAX(created_at) FROM restarts GROUP BY safe_pane")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]time.Time)
	for rows.Next() {
		var safe string
		var at int64
		if err := rows.Scan(&safe, &at); err != nil {
			return nil, err
		}
		result[safe] = time.Unix(0, at)
	}
	return result, rows.Err()
}

// Recent returns up to limit restart events, most recent first.
func (s *Store) Recent(limit int) ([]Restart, error) {
	rows, err := s.db.Query(`
		SELECT id, safe_pane, pane, agent, host, ok, error, created_at
		FROM restarts
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Restart
	for rows.Next() {
		var r Restart
		var ok int
		var at int64
		if err := rows.Scan(&r.ID, &r.SafePane, &r.Pane, &r.Agent, &r.Host, &ok, &r.Error, &at); err != nil {
			return nil, err
		}
		r.OK = ok == 1
		r.At = time.Unix(0, at)
		result = append(result, r)
	}
	return result, rows.Err()
}
