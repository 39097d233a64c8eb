package core

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func newTestHub(t *testing.T, opts HubOptions) (*Hub, *clock.Mock) {
	t.Helper()

	mock := clock.NewMock()
	mock.Set(time.Date(2024, 1, 2, 15, 4, 0, 0, time.UTC))
	if opts.Clock == nil {
		opts.Clock = mock
	}
	hub, err := NewHub(opts)
	if err != nil {
		t.Fatalf("new hub: %v", err)
	}
	return hub, mock
}

func mustJoin(t *testing.T, hub *Hub, id, name string) *Session {
	t.Helper()

	s := NewSession(id, name, "127.0.0.1:"+id, 0)
	if err := hub.Join(s); err != nil {
		t.Fatalf("join %s: %v", name, err)
	}
	return s
}

// mustEvent returns the next queued event of the given kind, skipping others.
func mustEvent(t *testing.T, s *Session, kind EventKind) *Event {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		ev, err := s.Next(ctx)
		if err != nil {
			t.Fatalf("expected event kind %v not received: %v", kind, err)
		}
		if ev.Kind == kind {
			return ev
		}
	}
}

// drain returns every event currently queued for s.
func drain(t *testing.T, s *Session) []*Event {
	t.Helper()

	var out []*Event
	for s.Pending() > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		ev, err := s.Next(ctx)
		cancel()
		if err != nil {
			t.Fatalf("drain: %v", err)
		}
		out = append(out, ev)
	}
	return out
}

func eventsOfKind(events []*Event, kind EventKind) []*Event {
	var out []*Event
	for _, ev := range events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}
