package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/coderlang-ai/coderlang/core"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id       TEXT PRIMARY KEY,
	state    TEXT NOT NULL DEFAULT '{}',
	metadata TEXT NOT NULL DEFAULT '{}',
	created  TEXT NOT NULL,
	updated  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS events (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES sessions(id),
	payload    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id, seq);
`

// SQLiteStore is a durable SessionStore on a local SQLite database
// (modernc.org/sqlite, no cgo). Session state and metadata are stored as
// JSON columns; events are appended as JSON rows and replayed in order.
type SQLiteStore struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path and applies
// the schema. Use ":memory:" for an ephemeral store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// SQLite allows a single writer; serializing through one connection
	// avoids SQLITE_BUSY under concurrent agent runs.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Create inserts a new session row, or returns the existing session when the
// id is already present.
func (s *SQLiteStore) Create(sessionID string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLocked(sessionID); err != nil {
		return nil, fmt.Errorf("create session %s: %w", sessionID, err)
	}
	return s.loadLocked(sessionID)
}

// Get returns the session, creating it lazily like the in-memory store.
func (s *SQLiteStore) Get(sessionID string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.loadLocked(sessionID)
	if err == core.ErrSessionNotFound {
		if err := s.ensureLocked(sessionID); err != nil {
			return nil, err
		}
		return s.loadLocked(sessionID)
	}
	return sess, err
}

// AppendEvent persists an event row and bumps the session's updated stamp.
func (s *SQLiteStore) AppendEvent(sessionID string, ev core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLocked(sessionID); err != nil {
		return err
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO events (session_id, payload) VALUES (?, ?)`, sessionID, string(payload)); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.Exec(`UPDATE sessions SET updated = ? WHERE id = ?`, now, sessionID); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return tx.Commit()
}

// ApplyDelta merges a key/value delta into the session's JSON state.
func (s *SQLiteStore) ApplyDelta(sessionID string, delta map[string]interface{}) error {
	if len(delta) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLocked(sessionID); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var raw string
	if err := tx.QueryRow(`SELECT state FROM sessions WHERE id = ?`, sessionID).Scan(&raw); err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	state := map[string]interface{}{}
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	for k, v := range delta {
		state[k] = v
	}

	encoded, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.Exec(`UPDATE sessions SET state = ?, updated = ? WHERE id = ?`, string(encoded), now, sessionID); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return tx.Commit()
}

// ensureLocked creates the session row if it does not exist yet.
func (s *SQLiteStore) ensureLocked(sessionID string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.Exec(
		`INSERT INTO sessions (id, state, metadata, created, updated) VALUES (?, '{}', '{}', ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		sessionID, now, now,
	)
	return err
}

// loadLocked materializes a core.Session from the session row and its events.
func (s *SQLiteStore) loadLocked(sessionID string) (*core.Session, error) {
	var (
		rawState, rawMeta string
		created, updated  string
	)
	err := s.db.QueryRow(`SELECT state, metadata, created, updated FROM sessions WHERE id = ?`, sessionID).
		Scan(&rawState, &rawMeta, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, core.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}

	sess := core.NewSession(sessionID)
	if err := json.Unmarshal([]byte(rawState), &sess.State); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	if err := json.Unmarshal([]byte(rawMeta), &sess.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
		sess.Created = t
	}
	if t, err := time.Parse(time.RFC3339Nano, updated); err == nil {
		sess.Updated = t
	}

	rows, err := s.db.Query(`SELECT payload FROM events WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var ev core.Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		sess.Events = append(sess.Events, ev)
	}
	return sess, rows.Err()
}
