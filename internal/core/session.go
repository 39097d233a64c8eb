package core

import (
	"context"
	"sync"
	"time"

	"github.com/gammazero/deque"
)

// Session is one connected client as seen by the core layer.
// Identity fields are fixed before registration and read-only afterwards.
type Session struct {
	id       string
	username string
	addr     string
	joinedAt time.Time

	out *outbox
}

// NewSession builds a session whose outbound queue holds at most queueLimit
// pending live events. A non-positive limit disables the bound.
func NewSession(id, username, addr string, queueLimit int) *Session {
	return &Session{
		id:       id,
		username: username,
		addr:     addr,
		out:      newOutbox(queueLimit),
	}
}

func (s *Session) ID() string          { return s.id }
func (s *Session) Username() string    { return s.username }
func (s *Session) Addr() string        { return s.addr }
func (s *Session) JoinedAt() time.Time { return s.joinedAt }

// Peer returns a snapshot of the session identity.
func (s *Session) Peer() Peer {
	return Peer{Username: s.username, Addr: s.addr, JoinedAt: s.joinedAt}
}

// Send queues a reply for this session only.
func (s *Session) Send(ev *Event) error {
	return s.out.push(false, ev)
}

// Next blocks until an event is available for the writer.
// It returns ErrSessionClosed once the session is closed and drained.
func (s *Session) Next(ctx context.Context) (*Event, error) {
	return s.out.next(ctx)
}

// Finish stops accepting events; queued ones are still handed to Next.
func (s *Session) Finish() {
	s.out.finish()
}

// Close stops the session immediately and drops queued events. Safe to call repeatedly.
func (s *Session) Close() {
	s.out.close()
}

// Done is closed when the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.out.done
}

// Pending returns the number of queued events.
func (s *Session) Pending() int {
	return s.out.len()
}

// outbox decouples producers from the session's connection writer.
type outbox struct {
	mu       sync.Mutex
	queue    deque.Deque[*Event]
	limit    int
	draining bool
	closed   bool

	ready chan struct{}
	done  chan struct{}
}

func newOutbox(limit int) *outbox {
	return &outbox{
		limit: limit,
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// push appends events atomically. Forced pushes ignore the limit; they are
// used for replay, which is bounded by the history itself.
func (o *outbox) push(force bool, events ...*Event) error {
	o.mu.Lock()
	if o.closed || o.draining {
		o.mu.Unlock()
		return ErrSessionClosed
	}
	if !force && o.limit > 0 && o.queue.Len()+len(events) > o.limit {
		o.mu.Unlock()
		return ErrSlowConsumer
	}
	for _, ev := range events {
		o.queue.PushBack(ev)
	}
	o.mu.Unlock()

	o.signal()
	return nil
}

func (o *outbox) next(ctx context.Context) (*Event, error) {
	for {
		o.mu.Lock()
		if o.closed {
			o.mu.Unlock()
			return nil, ErrSessionClosed
		}
		if o.queue.Len() > 0 {
			ev := o.queue.PopFront()
			o.mu.Unlock()
			return ev, nil
		}
		if o.draining {
			o.mu.Unlock()
			return nil, ErrSessionClosed
		}
		o.mu.Unlock()

		select {
		case <-o.ready:
		case <-o.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (o *outbox) finish() {
	o.mu.Lock()
	o.draining = true
	o.mu.Unlock()
	o.signal()
}

func (o *outbox) close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	o.queue.Clear()
	close(o.done)
}

func (o *outbox) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.queue.Len()
}

func (o *outbox) signal() {
	select {
	case o.ready <- struct{}{}:
	default:
	}
}
