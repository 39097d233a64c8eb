package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-tcp/internal/config"
	"github.com/vovakirdan/wirechat-tcp/internal/core"
	"github.com/vovakirdan/wirechat-tcp/internal/store"
)

// NewServer builds the admin HTTP server: health, presence and audit endpoints,
// plus the WebSocket bridge into the chat protocol. events may be nil when
// auditing is disabled.
func NewServer(hub *core.Hub, sessions ConnServer, events store.EventStore, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	admin := NewAdminHandlers(hub, events, logger)
	router.GET("/health", admin.Health)
	router.GET("/people", admin.People)
	router.GET("/events", admin.Events)

	// The upgrade hijacks after writing 101, which gin's writer rejects, so /ws
	// is mounted beside the router.
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(sessions, cfg.MaxMessageSize, logger))
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
