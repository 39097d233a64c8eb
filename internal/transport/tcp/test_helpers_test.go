package tcp

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-tcp/internal/core"
	"github.com/vovakirdan/wirechat-tcp/internal/log"
	"github.com/vovakirdan/wirechat-tcp/internal/proto"
)

const readTimeout = 2 * time.Second

func defaultTestOptions() Options {
	return Options{
		MaxMessageSize: 1024,
		WriteTimeout:   time.Second,
		OutboundQueue:  64,
	}
}

func startTestServer(t *testing.T, opts Options) (string, *core.Hub, *Server) {
	t.Helper()

	hub, err := core.NewHub(core.HubOptions{Logger: log.Nop()})
	if err != nil {
		t.Fatalf("new hub: %v", err)
	}
	srv := NewServer(NewHandler(hub, opts, log.Nop()), log.Nop())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		_ = srv.Serve(ln)
	}()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return ln.Addr().String(), hub, srv
}

type inbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func (in inbound) message(t *testing.T) proto.EventMessageData {
	t.Helper()
	var msg proto.EventMessageData
	if err := json.Unmarshal(in.Data, &msg); err != nil {
		t.Fatalf("decode message data %s: %v", in.Data, err)
	}
	return msg
}

type testClient struct {
	t      *testing.T
	conn   net.Conn
	framer proto.Framer
}

func dialRaw(t *testing.T, addr string) *testClient {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, readTimeout)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &testClient{t: t, conn: conn, framer: proto.NewFramer(0)}
}

// connect dials, registers username and waits for the welcome frame.
func connect(t *testing.T, addr, username string) *testClient {
	t.Helper()

	c := dialRaw(t, addr)
	c.send(username)
	c.expectEvent(proto.EventWelcome)
	return c
}

func (c *testClient) send(text string) {
	c.t.Helper()
	if err := c.framer.WriteFrame(c.conn, []byte(text)); err != nil {
		c.t.Fatalf("send %q: %v", text, err)
	}
}

func (c *testClient) next() inbound {
	c.t.Helper()

	_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	payload, err := c.framer.ReadFrame(c.conn)
	if err != nil {
		c.t.Fatalf("read frame: %v", err)
	}
	var in inbound
	if err := json.Unmarshal(payload, &in); err != nil {
		c.t.Fatalf("decode frame %q: %v", payload, err)
	}
	return in
}

// collectUntil reads frames up to and including the first with the given event.
func (c *testClient) collectUntil(event string) []inbound {
	c.t.Helper()

	var seen []inbound
	for {
		in := c.next()
		seen = append(seen, in)
		if in.Type == proto.OutboundTypeEvent && in.Event == event {
			return seen
		}
		if in.Type == proto.OutboundTypeError {
			c.t.Fatalf("unexpected error frame while waiting for %s: %+v", event, in.Error)
		}
	}
}

func (c *testClient) expectEvent(event string) inbound {
	c.t.Helper()
	seen := c.collectUntil(event)
	return seen[len(seen)-1]
}

func (c *testClient) expectError(code string) {
	c.t.Helper()
	for {
		in := c.next()
		if in.Type != proto.OutboundTypeError {
			continue
		}
		if in.Error == nil || in.Error.Code != code {
			c.t.Fatalf("expected error %s, got %+v", code, in.Error)
		}
		return
	}
}

// expectClosed skips remaining frames until the server closes the connection.
func (c *testClient) expectClosed() {
	c.t.Helper()

	_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	for {
		_, err := c.framer.ReadFrame(c.conn)
		if err == nil {
			continue
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			c.t.Fatalf("connection still open: %v", err)
		}
		return
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(readTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
