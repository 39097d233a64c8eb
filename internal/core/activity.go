package core

import (
	"time"

	"github.com/rs/zerolog"
)

// ActivityKind names a session lifecycle event.
type ActivityKind string

const (
	ActivityConnected ActivityKind = "connected"
	ActivityJoined    ActivityKind = "joined"
	ActivityRejected  ActivityKind = "rejected"
	ActivityLeft      ActivityKind = "left"
)

// Activity is a plain structured event handed to sinks. Rendering is the sink's job.
type Activity struct {
	At        time.Time
	Kind      ActivityKind
	SessionID string
	Username  string
	Addr      string
	Detail    string
}

// ActivitySink consumes lifecycle events. Implementations must be safe for concurrent use
// and must not call back into the hub.
type ActivitySink interface {
	Record(Activity)
}

// NopSink drops every event.
type NopSink struct{}

func (NopSink) Record(Activity) {}

// MultiSink fans an event out to several sinks in order.
type MultiSink []ActivitySink

func (m MultiSink) Record(a Activity) {
	for _, sink := range m {
		if sink != nil {
			sink.Record(a)
		}
	}
}

// LogSink writes activity to a zerolog logger.
type LogSink struct {
	Log *zerolog.Logger
}

func (s LogSink) Record(a Activity) {
	if s.Log == nil {
		return
	}
	ev := s.Log.Info()
	if a.Kind == ActivityRejected {
		ev = s.Log.Warn()
	}
	ev = ev.Time("at", a.At).
		Str("kind", string(a.Kind)).
		Str("addr", a.Addr)
	if a.SessionID != "" {
		ev = ev.Str("session_id", a.SessionID)
	}
	if a.Username != "" {
		ev = ev.Str("user", a.Username)
	}
	if a.Detail != "" {
		ev = ev.Str("detail", a.Detail)
	}
	ev.Msg("session " + string(a.Kind))
}
