package store

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-tcp/internal/core"
)

const recordTimeout = 5 * time.Second

// AuditSink adapts an EventStore to core.ActivitySink. Writes happen on a
// background worker so session goroutines never wait on the database.
type AuditSink struct {
	store EventStore
	log   *zerolog.Logger

	mu     sync.RWMutex
	closed bool
	events chan core.Activity
	wg     sync.WaitGroup
}

// NewAuditSink starts the worker. buffer bounds pending writes; when it is
// full new activity is dropped and logged.
func NewAuditSink(st EventStore, logger *zerolog.Logger, buffer int) *AuditSink {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	a := &AuditSink{
		store:  st,
		log:    logger,
		events: make(chan core.Activity, buffer),
	}
	a.wg.Add(1)
	go a.run()
	return a
}

// Record implements core.ActivitySink.
func (a *AuditSink) Record(act core.Activity) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	select {
	case a.events <- act:
	default:
		a.log.Warn().Str("kind", string(act.Kind)).Msg("audit buffer full, dropping event")
	}
}

// Close flushes pending events and stops the worker. It does not close the store.
func (a *AuditSink) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.events)
	}
	a.mu.Unlock()
	a.wg.Wait()
}

func (a *AuditSink) run() {
	defer a.wg.Done()
	for act := range a.events {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		_, err := a.store.RecordEvent(ctx, Event{
			Kind:      string(act.Kind),
			SessionID: act.SessionID,
			Username:  act.Username,
			Addr:      act.Addr,
			Detail:    act.Detail,
			At:        act.At,
		})
		cancel()
		if err != nil {
			a.log.Error().Err(err).Str("kind", string(act.Kind)).Msg("failed to record audit event")
		}
	}
}
