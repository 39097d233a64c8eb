package core

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is the single source of truth for who is connected.
// Usernames are unique among registered sessions.
type Registry struct {
	mu     sync.RWMutex
	byID   map[string]*Session
	byName map[string]*Session
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[string]*Session),
		byName: make(map[string]*Session),
	}
}

// Register inserts s. Exactly one of several concurrent registrations for the
// same username succeeds; the others get ErrDuplicateUsername.
func (r *Registry) Register(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[s.username]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateUsername, s.username)
	}
	if _, exists := r.byID[s.id]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, s.id)
	}
	r.byID[s.id] = s
	r.byName[s.username] = s
	return nil
}

// Unregister removes the session by id. Returns true if it was present.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, exists := r.byID[id]
	if !exists {
		return false
	}
	delete(r.byID, id)
	if r.byName[s.username] == s {
		delete(r.byName, s.username)
	}
	return true
}

// Lookup finds a registered session by username.
func (r *Registry) Lookup(username string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byName[username]
	return s, ok
}

// Contains reports whether the session id is registered.
func (r *Registry) Contains(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byID[id]
	return ok
}

// List returns a snapshot ordered by join time, then username.
func (r *Registry) List() []Peer {
	r.mu.RLock()
	peers := make([]Peer, 0, len(r.byID))
	for _, s := range r.byID {
		peers = append(peers, s.Peer())
	}
	r.mu.RUnlock()

	sort.Slice(peers, func(i, j int) bool {
		if !peers[i].JoinedAt.Equal(peers[j].JoinedAt) {
			return peers[i].JoinedAt.Before(peers[j].JoinedAt)
		}
		return peers[i].Username < peers[j].Username
	})
	return peers
}

// Sessions returns a snapshot of registered sessions in no particular order.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, s)
	}
	return out
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
