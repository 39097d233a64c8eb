package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/wirechat-tcp/internal/config"
	"github.com/vovakirdan/wirechat-tcp/internal/core"
	"github.com/vovakirdan/wirechat-tcp/internal/store"
	"github.com/vovakirdan/wirechat-tcp/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/wirechat-tcp/internal/transport/http"
	"github.com/vovakirdan/wirechat-tcp/internal/transport/tcp"
)

// App wires together core and transport layers.
type App struct {
	cfg             config.Config
	hub             *core.Hub
	tcp             *tcp.Server
	http            *stdhttp.Server
	store           store.EventStore
	audit           *store.AuditSink
	shutdownTimeout time.Duration
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, shutdownTimeout: cfg.ShutdownTimeout, log: logger}

	sinks := core.MultiSink{core.LogSink{Log: logger}}
	if cfg.AuditDBPath != "" {
		st, err := sqlite.New(cfg.AuditDBPath)
		if err != nil {
			return nil, fmt.Errorf("init audit store: %w", err)
		}
		logger.Info().Str("db_path", cfg.AuditDBPath).Msg("audit store initialized")
		a.store = st
		a.audit = store.NewAuditSink(st, logger, 0)
		sinks = append(sinks, a.audit)
	}

	if cfg.HistoryLimit == 0 {
		logger.Warn().Msg("history_limit is 0: message history is kept in memory without bound")
	}

	hub, err := core.NewHub(core.HubOptions{
		HistoryLimit:    cfg.HistoryLimit,
		EchoOwnMessages: cfg.EchoOwnMessages,
		Sink:            sinks,
		Logger:          logger,
	})
	if err != nil {
		a.cleanup()
		return nil, fmt.Errorf("init hub: %w", err)
	}
	a.hub = hub

	handler := tcp.NewHandler(hub, tcp.Options{
		MaxMessageSize:    cfg.MaxMessageSize,
		IdleTimeout:       cfg.IdleTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		OutboundQueue:     cfg.OutboundQueue,
		MessagesPerMinute: cfg.MessagesPerMinute,
	}, logger)
	a.tcp = tcp.NewServer(handler, logger)

	if cfg.HTTPAddr != "" {
		a.http = transporthttp.NewServer(hub, a.tcp, a.store, cfg, logger)
	}
	return a, nil
}

// Hub returns the chat hub.
func (a *App) Hub() *core.Hub { return a.hub }

// Run listens on the configured addresses and blocks until context
// cancellation or a fatal listener error.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Addr)
	if err != nil {
		a.cleanup()
		return fmt.Errorf("listen %s: %w", a.cfg.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve runs the chat server on ln (and the HTTP server if configured).
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info().Str("addr", ln.Addr().String()).Msg("chat server listening")
		if err := a.tcp.Serve(ln); err != nil && !errors.Is(err, tcp.ErrServerClosed) {
			return fmt.Errorf("chat listener: %w", err)
		}
		return nil
	})

	if a.http != nil {
		g.Go(func() error {
			a.log.Info().Str("addr", a.http.Addr).Msg("http server listening")
			if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown()
	})

	err := g.Wait()
	a.cleanup()
	return err
}

func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	a.log.Info().Msg("shutting down")
	var err error
	if a.http != nil {
		err = multierr.Append(err, a.http.Shutdown(shutdownCtx))
	}
	err = multierr.Append(err, a.tcp.Shutdown(shutdownCtx))
	return err
}

// cleanup flushes the audit sink and closes the store.
func (a *App) cleanup() {
	if a.audit != nil {
		a.audit.Close()
		a.audit = nil
	}
	if a.store != nil {
		err := a.store.Close()
		a.store = nil
		if err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
