package tcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-tcp/internal/core"
	"github.com/vovakirdan/wirechat-tcp/internal/proto"
	"github.com/vovakirdan/wirechat-tcp/internal/utils"
)

// drainTimeout bounds flushing queued replies after the read side ends when
// no write timeout is configured.
const drainTimeout = 5 * time.Second

// defaultMaxMessageSize caps inbound payloads when Options leaves it unset.
const defaultMaxMessageSize = 1024

// Options tunes per-connection behaviour.
type Options struct {
	MaxMessageSize    int
	IdleTimeout       time.Duration
	WriteTimeout      time.Duration
	OutboundQueue     int
	MessagesPerMinute int
}

// Handler runs the client session protocol over any net.Conn.
type Handler struct {
	hub      *core.Hub
	opts     Options
	inbound  proto.Framer
	outbound proto.Framer
	log      *zerolog.Logger
}

// NewHandler builds a connection handler bound to hub.
func NewHandler(hub *core.Hub, opts Options, logger *zerolog.Logger) *Handler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = defaultMaxMessageSize
	}
	return &Handler{
		hub:      hub,
		opts:     opts,
		inbound:  proto.NewFramer(opts.MaxMessageSize),
		outbound: proto.NewFramer(0),
		log:      logger,
	}
}

// ServeConn owns conn from accept to close: registration, the read and write
// loops, and removal from the registry. Errors end only this session.
func (h *Handler) ServeConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	// Closing the connection is the only way to unblock a pending read.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	addr := conn.RemoteAddr().String()
	h.hub.Connected(addr)

	session, err := h.register(conn, addr)
	if err != nil {
		h.log.Debug().Err(err).Str("addr", addr).Msg("registration failed")
		return
	}

	log := h.log.With().
		Str("session_id", session.ID()).
		Str("user", session.Username()).
		Str("addr", addr).
		Logger()
	log.Info().Msg("client connected")

	readDone := make(chan error, 1)
	writeDone := make(chan error, 1)
	go func() {
		writeDone <- h.writeLoop(ctx, conn, session)
	}()
	go func() {
		readDone <- h.readLoop(conn, session)
	}()

	select {
	case err = <-readDone:
		h.hub.Leave(session)
		session.Finish()
		if h.opts.WriteTimeout <= 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(drainTimeout))
		}
		if writeErr := <-writeDone; err == nil {
			err = writeErr
		}
	case err = <-writeDone:
		h.hub.Leave(session)
		session.Close()
		_ = conn.Close()
		<-readDone
	}
	session.Close()

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Warn().Err(err).Msg("client disconnected with error")
		return
	}
	log.Info().Msg("client disconnected")
}

// register reads the first frame as the username and joins the hub.
func (h *Handler) register(conn net.Conn, addr string) (*core.Session, error) {
	h.armReadDeadline(conn)
	payload, err := h.inbound.ReadFrame(conn)
	if err != nil {
		if errors.Is(err, proto.ErrFraming) || errors.Is(err, proto.ErrMessageTooLarge) {
			h.writeError(conn, err)
		}
		h.hub.Reject("", addr, err)
		return nil, err
	}

	username := strings.TrimSpace(string(payload))
	if err := core.ValidateUsername(username); err != nil {
		h.writeError(conn, err)
		h.hub.Reject(username, addr, err)
		return nil, err
	}

	session := core.NewSession(utils.NewID(), username, addr, h.opts.OutboundQueue)
	if err := h.hub.Join(session); err != nil {
		h.writeError(conn, err)
		h.hub.Reject(username, addr, err)
		return nil, err
	}
	return session, nil
}

// readLoop returns nil on end-of-stream or /disconnect.
func (h *Handler) readLoop(conn net.Conn, session *core.Session) error {
	limiter := newRateLimiter(h.opts.MessagesPerMinute)
	for {
		h.armReadDeadline(conn)
		payload, err := h.inbound.ReadFrame(conn)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				return nil
			case errors.Is(err, proto.ErrFraming), errors.Is(err, proto.ErrMessageTooLarge):
				h.reply(session, err)
				return err
			default:
				return fmt.Errorf("%w: %v", proto.ErrConnectionClosed, err)
			}
		}
		if !utf8.Valid(payload) {
			err := fmt.Errorf("%w: payload is not valid UTF-8", proto.ErrFraming)
			h.reply(session, err)
			return err
		}

		done, err := h.dispatch(session, string(payload), limiter)
		if err != nil || done {
			return err
		}
	}
}

// dispatch handles one decoded frame. It reports done when the session must close.
func (h *Handler) dispatch(session *core.Session, payload string, limiter *rateLimiter) (bool, error) {
	cmd, err := core.ParseCommand(payload)
	if err != nil {
		h.reply(session, err)
		return true, err
	}

	switch cmd.Kind {
	case core.CommandDisconnect:
		return true, nil
	case core.CommandPeople:
		if err := h.hub.People(session); err != nil {
			return true, err
		}
		return false, nil
	case core.CommandPrivate:
		if !limiter.allow(h.hub.Clock().Now()) {
			h.replyRateLimited(session)
			return false, nil
		}
		if _, err := h.hub.Private(session, cmd.To, cmd.Text); err != nil {
			h.reply(session, err)
			if errors.Is(err, core.ErrRecipientUnavailable) {
				return false, nil
			}
			return true, err
		}
		return false, nil
	default:
		if strings.TrimSpace(cmd.Text) == "" {
			return false, nil
		}
		if !limiter.allow(h.hub.Clock().Now()) {
			h.replyRateLimited(session)
			return false, nil
		}
		if _, err := h.hub.Publish(session, cmd.Text); err != nil {
			return true, err
		}
		return false, nil
	}
}

func (h *Handler) writeLoop(ctx context.Context, conn net.Conn, session *core.Session) error {
	for {
		event, err := session.Next(ctx)
		if err != nil {
			if errors.Is(err, core.ErrSessionClosed) {
				return nil
			}
			return err
		}
		if err := h.writeOutbound(conn, outboundFromEvent(event)); err != nil {
			return err
		}
	}
}

func (h *Handler) writeOutbound(conn net.Conn, out proto.Outbound) error {
	payload, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshal outbound: %w", err)
	}
	if h.opts.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
	}
	if err := h.outbound.WriteFrame(conn, payload); err != nil {
		return fmt.Errorf("%w: %v", proto.ErrConnectionClosed, err)
	}
	return nil
}

// writeError replies directly on conn before a session exists. Best effort.
func (h *Handler) writeError(conn net.Conn, err error) {
	if writeErr := h.writeOutbound(conn, errorOutbound(core.ToCoreError(err))); writeErr != nil {
		h.log.Debug().Err(writeErr).Msg("write registration error")
	}
}

// reply queues a best-effort error for the session.
func (h *Handler) reply(session *core.Session, err error) {
	_ = session.Send(&core.Event{Kind: core.EventError, Error: core.ToCoreError(err)})
}

func (h *Handler) replyRateLimited(session *core.Session) {
	_ = session.Send(&core.Event{
		Kind:  core.EventError,
		Error: &core.CoreError{Code: core.ErrCodeRateLimited, Message: "too many messages, slow down"},
	})
}

func (h *Handler) armReadDeadline(conn net.Conn) {
	if h.opts.IdleTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(h.opts.IdleTimeout))
	}
}
