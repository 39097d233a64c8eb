package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/multierr"
)

const (
	maxAcceptDelay   = time.Second
	maxAcceptRetries = 10
)

// ErrServerClosed is returned by Serve after Shutdown.
var ErrServerClosed = errors.New("tcp: server closed")

// Server accepts connections and runs one supervised session goroutine per connection.
type Server struct {
	handler *Handler
	log     *zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	closing   bool
	listeners map[net.Listener]struct{}
	sessions  conc.WaitGroup
}

// NewServer builds a server around handler.
func NewServer(handler *Handler, logger *zerolog.Logger) *Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		handler:   handler,
		log:       logger,
		ctx:       ctx,
		cancel:    cancel,
		listeners: make(map[net.Listener]struct{}),
	}
}

// Serve accepts connections from ln until Shutdown or a persistent accept failure.
// Transient accept errors are retried with backoff; after maxAcceptRetries
// consecutive failures the error is returned. Running sessions are unaffected.
func (s *Server) Serve(ln net.Listener) error {
	if !s.trackListener(ln) {
		_ = ln.Close()
		return ErrServerClosed
	}
	defer s.untrackListener(ln)

	s.log.Info().Str("addr", ln.Addr().String()).Msg("accepting connections")

	var (
		delay    time.Duration
		failures int
	)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("accept: %w", err)
			}

			failures++
			if failures >= maxAcceptRetries {
				return fmt.Errorf("accept failed %d times: %w", failures, err)
			}
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else {
				delay *= 2
			}
			if delay > maxAcceptDelay {
				delay = maxAcceptDelay
			}
			s.log.Error().Err(err).Dur("retry_in", delay).Msg("accept error")

			select {
			case <-time.After(delay):
			case <-s.ctx.Done():
				return ErrServerClosed
			}
			continue
		}
		delay, failures = 0, 0

		if !s.spawn(conn, nil) {
			_ = conn.Close()
			return ErrServerClosed
		}
	}
}

// ServeConn runs a session for a connection accepted elsewhere (for example a
// WebSocket bridged into a net.Conn) and blocks until it ends.
func (s *Server) ServeConn(conn net.Conn) {
	done := make(chan struct{})
	if !s.spawn(conn, done) {
		_ = conn.Close()
		return
	}
	<-done
}

func (s *Server) spawn(conn net.Conn, done chan struct{}) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}

	s.sessions.Go(func() {
		if done != nil {
			defer close(done)
		}
		var catcher panics.Catcher
		catcher.Try(func() {
			s.handler.ServeConn(s.ctx, conn)
		})
		if recovered := catcher.Recovered(); recovered != nil {
			_ = conn.Close()
			s.log.Error().
				Err(recovered.AsError()).
				Str("addr", conn.RemoteAddr().String()).
				Msg("session panicked")
		}
	})
	return true
}

// Shutdown stops accepting, closes every session and waits for them to finish
// or for ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	s.cancel()
	var err error
	for ln := range s.listeners {
		if closeErr := ln.Close(); closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
			err = multierr.Append(err, closeErr)
		}
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		return err
	case <-ctx.Done():
		return multierr.Append(err, fmt.Errorf("wait for sessions: %w", ctx.Err()))
	}
}

func (s *Server) trackListener(ln net.Listener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.listeners[ln] = struct{}{}
	return true
}

func (s *Server) untrackListener(ln net.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, ln)
}
