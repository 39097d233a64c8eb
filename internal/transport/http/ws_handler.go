package http

import (
	"net"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-tcp/internal/proto"
)

// defaultWSReadLimit applies when no maximum message size is configured.
const defaultWSReadLimit = 1 << 20

// ConnServer runs a chat session over an already established stream.
type ConnServer interface {
	ServeConn(conn net.Conn)
}

// WSHandler upgrades HTTP connections and bridges them into the framed chat
// protocol. Binary WebSocket messages form one continuous byte stream, so
// frames may span or share messages.
type WSHandler struct {
	sessions  ConnServer
	readLimit int64
	log       *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(sessions ConnServer, maxMessageSize int, logger *zerolog.Logger) *WSHandler {
	limit := int64(defaultWSReadLimit)
	if maxMessageSize > 0 {
		limit = int64(proto.HeaderWidth+maxMessageSize) * 2
	}
	return &WSHandler{sessions: sessions, readLimit: limit, log: logger}
}

// ServeHTTP upgrades /ws and blocks until the chat session ends.
func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	conn.SetReadLimit(h.readLimit)

	stream := websocket.NetConn(r.Context(), conn, websocket.MessageBinary)
	h.sessions.ServeConn(&remoteAddrConn{
		Conn:   stream,
		remote: wsAddr(r.RemoteAddr),
	})
}

// remoteAddrConn reports the HTTP peer address instead of the bridge's placeholder.
type remoteAddrConn struct {
	net.Conn
	remote net.Addr
}

func (c *remoteAddrConn) RemoteAddr() net.Addr { return c.remote }

type wsAddr string

func (a wsAddr) Network() string { return "websocket" }
func (a wsAddr) String() string  { return string(a) }
