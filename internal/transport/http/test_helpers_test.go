package http

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-tcp/internal/config"
	"github.com/vovakirdan/wirechat-tcp/internal/core"
	"github.com/vovakirdan/wirechat-tcp/internal/log"
	"github.com/vovakirdan/wirechat-tcp/internal/store"
	"github.com/vovakirdan/wirechat-tcp/internal/store/sqlite"
	"github.com/vovakirdan/wirechat-tcp/internal/transport/tcp"
)

type testEnv struct {
	hub    *core.Hub
	server *httptest.Server
	events store.EventStore
}

func startTestServer(t *testing.T, withAudit bool) *testEnv {
	t.Helper()

	var (
		events store.EventStore
		sink   core.ActivitySink = core.NopSink{}
	)
	if withAudit {
		st, err := sqlite.New(":memory:")
		if err != nil {
			t.Fatalf("open store: %v", err)
		}
		t.Cleanup(func() { _ = st.Close() })
		audit := store.NewAuditSink(st, log.Nop(), 64)
		t.Cleanup(audit.Close)
		events, sink = st, audit
	}

	hub, err := core.NewHub(core.HubOptions{Sink: sink, Logger: log.Nop()})
	if err != nil {
		t.Fatalf("new hub: %v", err)
	}

	cfg := config.Default()
	sessions := tcp.NewServer(tcp.NewHandler(hub, tcp.Options{
		MaxMessageSize: cfg.MaxMessageSize,
		WriteTimeout:   time.Second,
		OutboundQueue:  cfg.OutboundQueue,
	}, log.Nop()), log.Nop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = sessions.Shutdown(ctx)
	})

	server := NewServer(hub, sessions, events, cfg, log.Nop())
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{hub: hub, server: ts, events: events}
}
