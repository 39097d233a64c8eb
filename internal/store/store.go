package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Event is one persisted session lifecycle record. Message bodies are never stored.
type Event struct {
	ID        int64
	Kind      string
	SessionID string
	Username  string
	Addr      string
	Detail    string
	At        time.Time
}

// EventStore persists the audit trail of connections.
type EventStore interface {
	// RecordEvent stores e and returns it with its ID set.
	RecordEvent(ctx context.Context, e Event) (*Event, error)
	// ListEvents returns up to limit most recent events, newest first.
	ListEvents(ctx context.Context, limit int) ([]Event, error)
	// GetEvent retrieves a single event by ID.
	GetEvent(ctx context.Context, id int64) (*Event, error)
	// Close releases the underlying resources.
	Close() error
}
