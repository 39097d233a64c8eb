package http

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/vovakirdan/wirechat-tcp/internal/proto"
)

type wsClient struct {
	t      *testing.T
	conn   net.Conn
	framer proto.Framer
}

func dialWS(t *testing.T, ctx context.Context, env *testEnv, username string) *wsClient {
	t.Helper()

	wsURL := strings.Replace(env.server.URL, "http", "ws", 1) + "/ws"
	ws, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn := websocket.NetConn(ctx, ws, websocket.MessageBinary)
	t.Cleanup(func() { _ = conn.Close() })

	c := &wsClient{t: t, conn: conn, framer: proto.NewFramer(0)}
	if err := c.framer.WriteFrame(conn, []byte(username)); err != nil {
		t.Fatalf("send username: %v", err)
	}
	c.expect(proto.EventWelcome)
	return c
}

func (c *wsClient) expect(event string) proto.Outbound {
	c.t.Helper()

	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		payload, err := c.framer.ReadFrame(c.conn)
		if err != nil {
			c.t.Fatalf("read frame: %v", err)
		}
		var out struct {
			proto.Outbound
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(payload, &out); err != nil {
			c.t.Fatalf("decode: %v", err)
		}
		if out.Type == proto.OutboundTypeError {
			c.t.Fatalf("unexpected error frame: %+v", out.Error)
		}
		if out.Event == event {
			var msg proto.EventMessageData
			_ = json.Unmarshal(out.Data, &msg)
			return proto.Outbound{Type: out.Type, Event: out.Event, Data: msg}
		}
	}
}

func TestWebSocketBridgeChat(t *testing.T) {
	env := startTestServer(t, false)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := dialWS(t, ctx, env, "alice")
	bob := dialWS(t, ctx, env, "bob")
	alice.expect(proto.EventUserJoined)

	if err := alice.framer.WriteFrame(alice.conn, []byte("hi there")); err != nil {
		t.Fatalf("send: %v", err)
	}

	out := bob.expect(proto.EventMessage)
	msg, ok := out.Data.(proto.EventMessageData)
	if !ok || msg.User != "alice" || msg.Text != "hi there" {
		t.Fatalf("unexpected event payload: %+v", out)
	}

	peers := env.hub.Registry().List()
	if len(peers) != 2 || !strings.Contains(peers[0].Addr, "127.0.0.1") {
		t.Fatalf("expected websocket peers with HTTP remote address, got %+v", peers)
	}
}
