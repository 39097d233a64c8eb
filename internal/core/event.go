package core

import "time"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventWelcome confirms registration to the new session.
	EventWelcome EventKind = iota
	// EventHistory announces how many replayed messages follow.
	EventHistory
	// EventMessage carries a broadcast chat message, live or replayed.
	EventMessage
	// EventPrivate delivers a private message to its recipient.
	EventPrivate
	// EventPrivateSent confirms a private message to its sender.
	EventPrivateSent
	// EventPeople answers /people.
	EventPeople
	// EventUserJoined notifies clients about a user joining.
	EventUserJoined
	// EventUserLeft notifies clients about a user leaving.
	EventUserLeft
	// EventError notifies a client about a session-local error.
	EventError
)

// Event is queued to sessions to describe what happened in the system.
// Events are shared between recipients and must not be modified once queued.
type Event struct {
	Kind    EventKind
	User    string
	At      time.Time
	Message Message
	Replay  bool // EventMessage delivered as part of history replay
	Count   int  // EventHistory
	People  []Peer
	Error   *CoreError
}

// Peer is a read-only view of a registered session.
type Peer struct {
	Username string
	Addr     string
	JoinedAt time.Time
}
