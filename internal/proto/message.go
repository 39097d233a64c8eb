package proto

const (
	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventWelcome     = "welcome"
	EventHistory     = "history"
	EventMessage     = "message"
	EventPrivate     = "private"
	EventPrivateSent = "private_sent"
	EventPeople      = "people"
	EventUserJoined  = "user_joined"
	EventUserLeft    = "user_left"
)

// Outbound is the JSON envelope carried in every server-to-client frame.
// Client-to-server frames are plain UTF-8 text.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventWelcomeData confirms a successful registration.
type EventWelcomeData struct {
	User     string `json:"user"`
	JoinedAt int64  `json:"joined_at"`
}

// EventHistoryData announces how many replayed messages follow.
type EventHistoryData struct {
	Count int `json:"count"`
}

// EventMessageData is a chat message, live or replayed.
type EventMessageData struct {
	ID      int64  `json:"id,omitempty"`
	User    string `json:"user"`
	To      string `json:"to,omitempty"`
	Text    string `json:"text"`
	TS      int64  `json:"ts"`
	History bool   `json:"history,omitempty"`
}

// Peer is one row of the /people reply.
type Peer struct {
	User     string `json:"user"`
	JoinedAt int64  `json:"joined_at"`
}

// EventPeopleData lists the connected users.
type EventPeopleData struct {
	People []Peer `json:"people"`
}

// EventPresence notifies that a user joined or left.
type EventPresence struct {
	User string `json:"user"`
	TS   int64  `json:"ts"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
