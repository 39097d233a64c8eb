package tcp

import (
	"context"
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-tcp/internal/core"
	"github.com/vovakirdan/wirechat-tcp/internal/log"
)

func TestPrivateToFullRecipientKeepsSenderOpen(t *testing.T) {
	hub, err := core.NewHub(core.HubOptions{Logger: log.Nop()})
	if err != nil {
		t.Fatalf("new hub: %v", err)
	}
	h := NewHandler(hub, defaultTestOptions(), log.Nop())

	alice := core.NewSession("a", "alice", "127.0.0.1:1", 0)
	bob := core.NewSession("b", "bob", "127.0.0.1:2", 1)
	for _, s := range []*core.Session{alice, bob} {
		if err := hub.Join(s); err != nil {
			t.Fatalf("join %s: %v", s.Username(), err)
		}
	}
	for alice.Pending() > 0 {
		nextEvent(t, alice)
	}

	done, err := h.dispatch(alice, "/private bob hello", newRateLimiter(0))
	if done || err != nil {
		t.Fatalf("sender should stay open, got done=%v err=%v", done, err)
	}

	ev := nextEvent(t, alice)
	if ev.Kind != core.EventError || ev.Error.Code != core.ErrCodeRecipientGone {
		t.Fatalf("expected %s error reply, got %+v", core.ErrCodeRecipientGone, ev)
	}
	select {
	case <-bob.Done():
	case <-time.After(time.Second):
		t.Fatalf("bob should be closed")
	}

	done, err = h.dispatch(alice, "/people", newRateLimiter(0))
	if done || err != nil {
		t.Fatalf("alice should keep working, got done=%v err=%v", done, err)
	}
}

func TestHandlerBoundsInboundFrames(t *testing.T) {
	hub, err := core.NewHub(core.HubOptions{Logger: log.Nop()})
	if err != nil {
		t.Fatalf("new hub: %v", err)
	}
	opts := defaultTestOptions()
	opts.MaxMessageSize = 0

	h := NewHandler(hub, opts, log.Nop())
	if h.inbound.MaxSize != defaultMaxMessageSize {
		t.Fatalf("expected inbound limit %d, got %d", defaultMaxMessageSize, h.inbound.MaxSize)
	}
}

func nextEvent(t *testing.T, s *core.Session) *core.Event {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ev, err := s.Next(ctx)
	if err != nil {
		t.Fatalf("next event: %v", err)
	}
	return ev
}
