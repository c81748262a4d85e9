// Kestrel - Loan status lookups with explainable decisions.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/opensource-finance/kestrel/internal/activity"
	"github.com/opensource-finance/kestrel/internal/api"
	"github.com/opensource-finance/kestrel/internal/bootstrap"
	"github.com/opensource-finance/kestrel/internal/config"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	configPath := flag.String("config", os.Getenv("KESTREL_CONFIG"), "Path to a YAML config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logger
	slog.SetDefault(newLogger(cfg.Logging))

	// Log startup
	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"store", cfg.Store.Type,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Artifacts are checked before any backend is opened; a missing or
	// mismatched artifact stops the process here.
	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "kind", domain.ErrorKind(err), "error", err)
		os.Exit(1)
	}
	defer app.Close()

	// Daily activity log rotation
	rotator, err := activity.NewRotator(app.FileLog, cfg.Activity.RotateSchedule)
	if err != nil {
		slog.Error("failed to schedule activity log rotation", "error", err)
		os.Exit(1)
	}
	rotator.Start()

	// Initialize async Worker (enabled by default on Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Worker.Enabled {
		asyncWorker = worker.NewWorker(app.Bus, app.Lookup)
		if err := asyncWorker.Start(worker.Config{Concurrency: cfg.Worker.Concurrency}); err != nil {
			slog.Error("failed to start async worker", "error", err)
			asyncWorker = nil
		} else {
			slog.Info("async worker started", "topic", domain.TopicLookupRequested)
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, api.Deps{
		Lookup:         app.Lookup,
		Activity:       app.Recorder,
		Store:          app.Store,
		Cache:          app.Cache,
		Bus:            app.Bus,
		EncoderColumns: app.Artifacts.Encoder.Columns(),
	}, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			cancel()
		}
	}()

	slog.Info("kestrel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, app, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	if err := rotator.Stop(shutdownCtx); err != nil {
		slog.Error("activity log rotation did not stop cleanly", "error", err)
	}

	slog.Info("kestrel shutdown complete")
}

func newLogger(cfg domain.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func printBanner(cfg *domain.Config, app *bootstrap.App, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               KESTREL                     ║")
	fmt.Println("  ║       Loan Status Lookup Engine           ║")
	fmt.Println("  ║    Every decision comes with a reason.    ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Model:    %s\n", app.Artifacts.Classifier.Version())
	fmt.Printf("  Encoders: %s\n", app.Artifacts.Encoder.Version())
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("  Activity: %s\n", app.FileLog.Path())
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /lookups                  - Check a customer's loan status")
	fmt.Println("    POST /lookups/async            - Queue a lookup on the event bus")
	fmt.Println("    GET  /lookups/{id}             - Get a recorded lookup")
	fmt.Println("    GET  /customers/{name}/lookups - Lookup history for a customer")
	fmt.Println("    GET  /stats                    - Today's outcome counts")
	fmt.Println("    GET  /model                    - Loaded model and encoders")
	fmt.Println("    GET  /health                   - Health check")
	fmt.Println()
}
