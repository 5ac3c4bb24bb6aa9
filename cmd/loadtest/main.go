package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pscheid92/wsrelay/internal/loadtest"
	"github.com/pscheid92/wsrelay/internal/platform/config"
	"github.com/pscheid92/wsrelay/internal/platform/logging"
)

func main() {
	cfg, err := config.LoadLoadTest()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := loadtest.Run(ctx, *cfg)
	slog.Info("Load test finished",
		"iterations", report.Iterations,
		"checks_passed", report.ChecksPassed,
		"checks_failed", report.ChecksFailed,
		"messages_received", report.MessagesReceived,
	)
	if err != nil {
		slog.Error("Load test aborted", "error", err)
		os.Exit(1)
	}
	if report.ChecksFailed > 0 {
		os.Exit(1)
	}
}
