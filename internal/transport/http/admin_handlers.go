package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-tcp/internal/core"
	"github.com/vovakirdan/wirechat-tcp/internal/store"
)

const maxEventsLimit = 1000

// AdminHandlers exposes read-only views of the chat state.
type AdminHandlers struct {
	hub    *core.Hub
	events store.EventStore
	log    *zerolog.Logger
}

// NewAdminHandlers creates a new admin handlers instance.
func NewAdminHandlers(hub *core.Hub, events store.EventStore, logger *zerolog.Logger) *AdminHandlers {
	return &AdminHandlers{
		hub:    hub,
		events: events,
		log:    logger,
	}
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// PeerResponse represents a connected user.
type PeerResponse struct {
	User     string `json:"user"`
	Addr     string `json:"addr"`
	JoinedAt string `json:"joined_at"`
}

// PeopleResponse lists connected users.
type PeopleResponse struct {
	Count    int            `json:"count"`
	Messages int            `json:"messages"`
	People   []PeerResponse `json:"people"`
}

// EventResponse represents an audit event.
type EventResponse struct {
	ID        int64  `json:"id"`
	Kind      string `json:"kind"`
	SessionID string `json:"session_id,omitempty"`
	User      string `json:"user,omitempty"`
	Addr      string `json:"addr,omitempty"`
	Detail    string `json:"detail,omitempty"`
	At        string `json:"at"`
}

// Health reports liveness.
// GET /health
func (h *AdminHandlers) Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// People lists the registry snapshot.
// GET /people
func (h *AdminHandlers) People(c *gin.Context) {
	peers := h.hub.Registry().List()
	resp := PeopleResponse{
		Count:    len(peers),
		Messages: h.hub.History().Len(),
		People:   make([]PeerResponse, 0, len(peers)),
	}
	for _, p := range peers {
		resp.People = append(resp.People, PeerResponse{
			User:     p.Username,
			Addr:     p.Addr,
			JoinedAt: p.JoinedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, resp)
}

// Events returns the most recent audit events.
// GET /events?limit=N
func (h *AdminHandlers) Events(c *gin.Context) {
	if h.events == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "audit log is disabled"})
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxEventsLimit {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be between 1 and 1000"})
			return
		}
		limit = n
	}

	events, err := h.events.ListEvents(c.Request.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list audit events")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	resp := make([]EventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, EventResponse{
			ID:        e.ID,
			Kind:      e.Kind,
			SessionID: e.SessionID,
			User:      e.Username,
			Addr:      e.Addr,
			Detail:    e.Detail,
			At:        e.At.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{"events": resp})
}
