package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/wsrelay/internal/adapter/httpserver"
	"github.com/pscheid92/wsrelay/internal/adapter/metrics"
	"github.com/pscheid92/wsrelay/internal/adapter/websocket"
	"github.com/pscheid92/wsrelay/internal/platform/config"
	"github.com/pscheid92/wsrelay/internal/platform/logging"
	"github.com/pscheid92/wsrelay/internal/platform/version"
	"github.com/pscheid92/wsrelay/internal/relay"
	"golang.org/x/sync/errgroup"
)

const shutdownReason = "Server shutting down"

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().String())

	registry := metrics.NewRegistry()
	relayMetrics := metrics.NewRelayMetrics(registry)
	httpMetrics := metrics.NewHTTPMetrics(registry)

	r := relay.New(relay.NewRegistry(), relayMetrics)

	limits := websocket.NewConnectionLimits(
		int64(cfg.MaxWebSocketConnections),
		cfg.MaxConnectionsPerIP,
		cfg.ConnectionRatePerIP,
		cfg.ConnectionBurstPerIP,
		clock,
	)
	wsHandler := websocket.NewHandler(r, limits, websocket.NewCheckOrigin(cfg.AppURL, cfg.IsDevelopment()), relayMetrics, clock)

	healthChecks := []httpserver.HealthCheck{
		{Name: "connection_capacity", Check: limits.CheckCapacity},
	}
	srv := httpserver.NewServer(cfg, wsHandler.Handle, metrics.Handler(registry), httpMetrics, healthChecks)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		r.Shutdown(shutdownReason)
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}

	stats := r.Stats()
	slog.Info("Server stopped",
		"messages_received", stats.MessagesReceived,
		"messages_sent", stats.MessagesSent,
		"send_failures", stats.SendFailures,
	)
}
