package core

import "time"

// Message is the domain model for a chat message. It is never mutated after creation.
type Message struct {
	ID        int64
	From      string
	To        string // set only for private messages
	Text      string
	CreatedAt time.Time
}

// IsPrivate reports whether the message targets a single recipient.
func (m Message) IsPrivate() bool {
	return m.To != ""
}
