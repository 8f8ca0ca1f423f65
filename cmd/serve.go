package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/timvw/plan-relay/internal/httpserver"
	telem "github.com/timvw/plan-relay/internal/otel"
	"github.com/timvw/plan-relay/internal/planner"
	"github.com/timvw/plan-relay/internal/recovery"
	"go.uber.org/zap"
)

var flagListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the plan API over HTTP",
	Long: `Start the HTTP server.

  GET  /health     liveness probe
  POST /api/plan   {"topic": "...", "days": 7, "model": "optional"}

Plan failures (backend unreachable, bad backend response, unrecoverable
model output) are answered with HTTP 200 and {"ok": false, ...}. Malformed
requests are answered with 422.

Configuration is loaded from .plan-relay.yaml or environment variables.
SIGINT or SIGTERM drains in-flight requests before exiting.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagListen, "listen", envOrDefault("PLAN_RELAY_LISTEN", ""),
		"listen address (default: :8000)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	listen := cfg.Listen
	if flagListen != "" {
		listen = flagListen
	}

	// Wire build version into OTEL service metadata
	telem.Version = Version

	// Initialize OTEL (no-op if no endpoint configured)
	tel, err := telem.Init(ctx, telem.OTELConfig{
		Endpoint: cfg.OTELEndpoint,
		Headers:  cfg.OTELHeaders,
	})
	if err != nil {
		logger.Warn("otel init failed", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tel.Shutdown(shutdownCtx)
	}()

	gen, err := getGenerator()
	if err != nil {
		return fmt.Errorf("backend: %w", err)
	}

	svc := planner.New(gen, recovery.New(cfg.Recovery), logger, tel.Instruments())
	srv := httpserver.New(svc, logger)

	logger.Info("starting plan-relay",
		zap.String("version", Version),
		zap.String("listen", listen),
		zap.String("provider", gen.Provider()),
		zap.String("backend_url", gen.URL()),
		zap.String("model", gen.DefaultModel()),
		zap.Duration("timeout", cfg.TimeoutDuration),
		zap.String("recovery_mode", string(cfg.Recovery)),
	)

	return srv.ListenAndServe(ctx, listen)
}
