package app

import (
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-tcp/internal/config"
	"github.com/vovakirdan/wirechat-tcp/internal/log"
	"github.com/vovakirdan/wirechat-tcp/internal/proto"
	"github.com/vovakirdan/wirechat-tcp/internal/store/sqlite"
)

func TestAppServesChatAndShutsDown(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "audit.db")

	cfg := config.Default()
	cfg.Addr = "127.0.0.1:0"
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.AuditDBPath = dbPath
	cfg.ShutdownTimeout = 2 * time.Second

	application, err := New(cfg, log.Nop())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- application.Serve(ctx, ln) }()

	conn, err := net.DialTimeout("tcp", ln.Addr().String(), time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	framer := proto.NewFramer(0)
	if err := framer.WriteFrame(conn, []byte("alice")); err != nil {
		t.Fatalf("send username: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	payload, err := framer.ReadFrame(conn)
	if err != nil {
		t.Fatalf("read welcome: %v", err)
	}
	var welcome proto.Outbound
	if err := json.Unmarshal(payload, &welcome); err != nil || welcome.Event != proto.EventWelcome {
		t.Fatalf("unexpected first frame %s (err=%v)", payload, err)
	}
	if application.Hub().Registry().Len() != 1 {
		t.Fatalf("alice should be registered")
	}

	cancel()
	select {
	case err := <-runErr:
		if err != nil {
			t.Fatalf("serve returned error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("app did not shut down")
	}

	st, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("reopen audit store: %v", err)
	}
	defer st.Close()
	events, err := st.ListEvents(context.Background(), 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	kinds := map[string]bool{}
	for _, e := range events {
		kinds[e.Kind] = true
	}
	if !kinds["connected"] || !kinds["joined"] || !kinds["left"] {
		t.Fatalf("expected connected, joined and left audit events, got %+v", events)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.OutboundQueue = 0

	if _, err := New(cfg, log.Nop()); err == nil {
		t.Fatalf("expected invalid config to be rejected")
	}
}
