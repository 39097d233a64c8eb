package core

import (
	"fmt"
	"sync"
)

// MessageLog is the ordered, append-only history replayed to new sessions.
// With a zero limit it grows for the lifetime of the process; a positive
// limit keeps only the most recent messages.
type MessageLog struct {
	mu     sync.RWMutex
	limit  int
	nextID int64
	data   []Message
}

// NewMessageLog builds a log. limit <= 0 means unbounded.
func NewMessageLog(limit int) (*MessageLog, error) {
	if limit < 0 {
		return nil, fmt.Errorf("core.NewMessageLog: limit (%d) must not be negative", limit)
	}
	return &MessageLog{limit: limit, data: []Message{}}, nil
}

// Append stores msg, assigning the next sequence ID, and returns the stored copy.
func (l *MessageLog) Append(msg Message) Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	msg.ID = l.nextID
	if l.limit > 0 && len(l.data) == l.limit {
		copy(l.data, l.data[1:])
		l.data = l.data[:len(l.data)-1]
	}
	l.data = append(l.data, msg)
	return msg
}

// Snapshot copies the current history, oldest first.
func (l *MessageLog) Snapshot() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Message, len(l.data))
	copy(out, l.data)
	return out
}

// Len returns the number of retained messages.
func (l *MessageLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.data)
}
