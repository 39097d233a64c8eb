package core

import (
	"errors"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

// HubOptions configures a Hub. Zero values are usable.
type HubOptions struct {
	// HistoryLimit bounds the replay log; 0 keeps everything.
	HistoryLimit int
	// EchoOwnMessages delivers a sender's chat message back to the sender.
	EchoOwnMessages bool
	Clock           clock.Clock
	Sink            ActivitySink
	Logger          *zerolog.Logger
}

// Hub coordinates the registry, the message log and broadcast fan-out.
//
// seq serializes every operation that changes who receives what: joins (register
// plus history snapshot plus replay), leaves and broadcasts. A message is therefore
// either in a joiner's replay or delivered to it live, never both and never neither.
// Fan-out only enqueues, so seq is never held across network I/O.
type Hub struct {
	seq      sync.Mutex
	registry *Registry
	history  *MessageLog
	echo     bool
	clock    clock.Clock
	sink     ActivitySink
	log      *zerolog.Logger
}

// NewHub creates a new chat hub instance.
func NewHub(opts HubOptions) (*Hub, error) {
	history, err := NewMessageLog(opts.HistoryLimit)
	if err != nil {
		return nil, err
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Sink == nil {
		opts.Sink = NopSink{}
	}
	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}
	return &Hub{
		registry: NewRegistry(),
		history:  history,
		echo:     opts.EchoOwnMessages,
		clock:    opts.Clock,
		sink:     opts.Sink,
		log:      opts.Logger,
	}, nil
}

// Registry exposes the registry for read-only queries.
func (h *Hub) Registry() *Registry { return h.registry }

// History exposes the message log for read-only queries.
func (h *Hub) History() *MessageLog { return h.history }

// Clock returns the time source used for timestamps.
func (h *Hub) Clock() clock.Clock { return h.clock }

// Join registers s and queues the welcome frame and the full history replay
// ahead of any live broadcast.
func (h *Hub) Join(s *Session) error {
	h.seq.Lock()
	now := h.clock.Now()
	s.joinedAt = now
	if err := h.registry.Register(s); err != nil {
		h.seq.Unlock()
		return err
	}

	backlog := h.history.Snapshot()
	events := make([]*Event, 0, len(backlog)+2)
	events = append(events,
		&Event{Kind: EventWelcome, User: s.username, At: now},
		&Event{Kind: EventHistory, Count: len(backlog), At: now},
	)
	for _, msg := range backlog {
		events = append(events, &Event{Kind: EventMessage, Message: msg, Replay: true})
	}
	if err := s.out.push(true, events...); err != nil {
		h.registry.Unregister(s.id)
		h.seq.Unlock()
		return fmt.Errorf("queue replay: %w", err)
	}

	h.broadcastLocked(&Event{Kind: EventUserJoined, User: s.username, At: now}, s.id)
	h.seq.Unlock()

	h.sink.Record(Activity{
		At:        now,
		Kind:      ActivityJoined,
		SessionID: s.id,
		Username:  s.username,
		Addr:      s.addr,
		Detail:    fmt.Sprintf("replayed %d messages", len(backlog)),
	})
	return nil
}

// Leave unregisters s and tells the remaining sessions. Safe to call repeatedly.
func (h *Hub) Leave(s *Session) {
	h.seq.Lock()
	removed := h.registry.Unregister(s.id)
	now := h.clock.Now()
	if removed {
		h.broadcastLocked(&Event{Kind: EventUserLeft, User: s.username, At: now}, s.id)
	}
	h.seq.Unlock()

	if removed {
		h.sink.Record(Activity{
			At:        now,
			Kind:      ActivityLeft,
			SessionID: s.id,
			Username:  s.username,
			Addr:      s.addr,
		})
	}
}

// Publish appends a chat message from s to the history and broadcasts it.
func (h *Hub) Publish(s *Session, text string) (Message, error) {
	h.seq.Lock()
	defer h.seq.Unlock()

	if !h.registry.Contains(s.id) {
		return Message{}, ErrSessionClosed
	}
	msg := h.history.Append(Message{
		From:      s.username,
		Text:      text,
		CreatedAt: h.clock.Now(),
	})

	exclude := s.id
	if h.echo {
		exclude = ""
	}
	h.broadcastLocked(&Event{Kind: EventMessage, Message: msg}, exclude)
	return msg, nil
}

// Broadcast delivers msg to every registered session except exclude (may be empty)
// without recording it in the history. It returns the number of sessions reached.
func (h *Hub) Broadcast(msg Message, exclude string) int {
	h.seq.Lock()
	defer h.seq.Unlock()
	return h.broadcastLocked(&Event{Kind: EventMessage, Message: msg}, exclude)
}

// Private sends text from s to the session registered as to. The sender gets a
// confirmation; nobody else sees the message.
func (h *Hub) Private(s *Session, to, text string) (Message, error) {
	target, ok := h.registry.Lookup(to)
	if !ok {
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownRecipient, to)
	}

	msg := Message{
		From:      s.username,
		To:        target.username,
		Text:      text,
		CreatedAt: h.clock.Now(),
	}
	if err := target.out.push(false, &Event{Kind: EventPrivate, Message: msg}); err != nil {
		h.dropRecipient(target, err)
		return Message{}, fmt.Errorf("%w: %q is disconnecting", ErrRecipientUnavailable, to)
	}
	if err := s.Send(&Event{Kind: EventPrivateSent, Message: msg}); err != nil {
		return msg, err
	}
	return msg, nil
}

// People answers /people for s.
func (h *Hub) People(s *Session) error {
	return s.Send(&Event{Kind: EventPeople, People: h.registry.List(), At: h.clock.Now()})
}

// Reject records a failed registration attempt.
func (h *Hub) Reject(username, addr string, err error) {
	h.sink.Record(Activity{
		At:       h.clock.Now(),
		Kind:     ActivityRejected,
		Username: username,
		Addr:     addr,
		Detail:   err.Error(),
	})
}

// Connected records an accepted connection before registration.
func (h *Hub) Connected(addr string) {
	h.sink.Record(Activity{At: h.clock.Now(), Kind: ActivityConnected, Addr: addr})
}

func (h *Hub) broadcastLocked(ev *Event, exclude string) int {
	delivered := 0
	for _, target := range h.registry.Sessions() {
		if target.id == exclude {
			continue
		}
		if err := target.out.push(false, ev); err != nil {
			h.dropRecipient(target, err)
			continue
		}
		delivered++
	}
	return delivered
}

// dropRecipient closes a session that cannot take more events. Its connection
// handler notices and unregisters it; delivery to others continues.
func (h *Hub) dropRecipient(s *Session, err error) {
	if errors.Is(err, ErrSessionClosed) {
		return
	}
	h.log.Warn().Err(err).
		Str("session_id", s.id).
		Str("user", s.username).
		Msg("dropping unreachable session")
	s.Close()
}
