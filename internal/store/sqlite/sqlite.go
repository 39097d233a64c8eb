package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/wirechat-tcp/internal/store"
)

// Schema creates the audit tables. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS session_events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	kind       TEXT NOT NULL,
	session_id TEXT NOT NULL DEFAULT '',
	username   TEXT NOT NULL DEFAULT '',
	addr       TEXT NOT NULL DEFAULT '',
	detail     TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_session_events_created ON session_events(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_session_events_username ON session_events(username);
`

// SQLiteStore implements store.EventStore for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ store.EventStore = (*SQLiteStore)(nil)

// New opens the database at dbPath and applies Schema.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
}

// NewWithSetup opens the database and runs a setup function instead of Schema.
// Useful for tests.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with single connection; it also keeps ":memory:" on one database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordEvent inserts a session event.
func (s *SQLiteStore) RecordEvent(ctx context.Context, e store.Event) (*store.Event, error) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	query := `
		INSERT INTO session_events (kind, session_id, username, addr, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, e.Kind, e.SessionID, e.Username, e.Addr, e.Detail, e.At.UTC())
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetEvent(ctx, id)
}

// GetEvent retrieves an event by ID.
func (s *SQLiteStore) GetEvent(ctx context.Context, id int64) (*store.Event, error) {
	query := `
		SELECT id, kind, session_id, username, addr, detail, created_at
		FROM session_events
		WHERE id = ?
	`
	var e store.Event
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&e.ID,
		&e.Kind,
		&e.SessionID,
		&e.Username,
		&e.Addr,
		&e.Detail,
		&e.At,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("event %d: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query event: %w", err)
	}

	return &e, nil
}

// ListEvents returns the most recent events, newest first.
func (s *SQLiteStore) ListEvents(ctx context.Context, limit int) ([]store.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, kind, session_id, username, addr, detail, created_at
		FROM session_events
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []store.Event
	for rows.Next() {
		var e store.Event
		if err := rows.Scan(&e.ID, &e.Kind, &e.SessionID, &e.Username, &e.Addr, &e.Detail, &e.At); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return events, nil
}
