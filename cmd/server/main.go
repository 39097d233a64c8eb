package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-tcp/internal/app"
	"github.com/vovakirdan/wirechat-tcp/internal/config"
	"github.com/vovakirdan/wirechat-tcp/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		overrides  config.Config
	)

	cmd := &cobra.Command{
		Use:           "wirechat-tcp",
		Short:         "Multi-client chat server speaking length-prefixed frames over TCP",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bootLogger := log.New(overrides.LogLevel)

			cfg, resolvedPath, err := config.Load(bootLogger, configPath)
			if err != nil {
				bootLogger.Error().Err(err).Str("path", resolvedPath).Msg("failed to load config")
				return err
			}
			cfg.UpdateFrom(overrides)
			if err := cfg.Validate(); err != nil {
				bootLogger.Error().Err(err).Msg("invalid config")
				return err
			}

			logger := log.New(cfg.LogLevel)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(cfg, logger)
			if err != nil {
				logger.Error().Err(err).Msg("failed to build application")
				return err
			}

			logger.Info().
				Str("config", resolvedPath).
				Str("addr", cfg.Addr).
				Str("http_addr", cfg.HTTPAddr).
				Msg("starting wirechat server")
			if err := application.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("server exited with error")
				return fmt.Errorf("run: %w", err)
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "path to config.yaml")
	flags.StringVar(&overrides.Addr, "addr", "", "chat TCP listen address")
	flags.StringVar(&overrides.HTTPAddr, "http-addr", "", "admin HTTP and WebSocket listen address")
	flags.DurationVar(&overrides.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")
	flags.IntVar(&overrides.MaxMessageSize, "max-message-size", 0, "maximum inbound payload size in bytes")
	flags.DurationVar(&overrides.IdleTimeout, "idle-timeout", 0, "close sessions idle for this long")
	flags.DurationVar(&overrides.WriteTimeout, "write-timeout", 0, "per-frame write deadline")
	flags.IntVar(&overrides.OutboundQueue, "outbound-queue", 0, "queued events per session before it is dropped as slow")
	flags.IntVar(&overrides.MessagesPerMinute, "messages-per-minute", 0, "per-session chat rate limit, 0 disables it")
	flags.IntVar(&overrides.HistoryLimit, "history-limit", 0, "keep only the newest N messages for replay")
	flags.BoolVar(&overrides.EchoOwnMessages, "echo", false, "echo chat messages back to their sender")
	flags.StringVar(&overrides.AuditDBPath, "audit-db", "", "sqlite file for the connection audit log")
	flags.StringVar(&overrides.LogLevel, "log-level", "", "debug, info, warn or error")

	cmd.SetContext(context.Background())
	return cmd
}
