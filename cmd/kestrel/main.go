// Kestrel - Real-time fraud risk scoring for account transactions.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/opensource-finance/kestrel/internal/analyzer"
	"github.com/opensource-finance/kestrel/internal/api"
	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/history"
	"github.com/opensource-finance/kestrel/internal/ledger"
	"github.com/opensource-finance/kestrel/internal/model"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/screening"
	"github.com/opensource-finance/kestrel/internal/stats"
	"github.com/opensource-finance/kestrel/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Optional .env for local development
	_ = godotenv.Load()

	// Load configuration
	cfg := domain.LoadFromEnv()

	// Initialize structured logger
	logLevel := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	slog.Info("configuration loaded",
		"threshold", cfg.FraudThreshold,
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

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Screening Engine
	screeningEngine, err := screening.NewEngine(100)
	if err != nil {
		slog.Error("failed to initialize screening engine", "error", err)
		os.Exit(1)
	}
	if err := loadScreeningRules(ctx, repo, screeningEngine); err != nil {
		slog.Error("failed to load screening rules", "error", err)
		os.Exit(1)
	}
	slog.Info("screening engine initialized", "rules_count", screeningEngine.RulesCount())

	// Initialize model interpreter (fallback-only without API key)
	var complete model.CompleteFunc
	if gemini := model.NewGeminiClient(cfg.Model); gemini != nil {
		complete = gemini.Complete
		slog.Info("model capability enabled", "model", cfg.Model.ModelName)
	} else {
		slog.Warn("no model API key configured, using fallback analysis")
	}
	interpreter := model.NewInterpreter(complete, time.Duration(cfg.Model.TimeoutSecs)*time.Second)

	// Initialize stats tracker and analyzer
	tracker := stats.NewTracker()

	patterns := loadPatterns(ctx, repo, cfg)
	engine, err := analyzer.New(cfg.FraudThreshold, patterns, interpreter, tracker)
	if err != nil {
		slog.Error("failed to initialize analyzer", "error", err)
		os.Exit(1)
	}
	slog.Info("analyzer initialized",
		"threshold", cfg.FraudThreshold,
		"model_enabled", interpreter.Available(),
	)

	// Initialize service clients
	historyClient := history.New(cfg.History, cacheImpl)
	ledgerClient := ledger.New(cfg.Ledger, Version)

	// Initialize async Worker
	var asyncWorker *worker.Worker
	if os.Getenv("KESTREL_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, engine, historyClient, screeningEngine, cacheImpl)
		if err := asyncWorker.Start(); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started")
		}
	}

	// Initialize auth
	auth, err := api.NewAuthenticator(cfg.Auth.PublicKeyPath)
	if err != nil {
		slog.Error("failed to initialize authenticator", "error", err)
		os.Exit(1)
	}

	// Initialize Server
	handler := api.NewHandler(engine, tracker, historyClient, ledgerClient, screeningEngine, repo, cacheImpl, busImpl, Version, interpreter.Available())
	srv := api.NewServer(cfg.Server, handler, auth)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kestrel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"permissive_auth", auth.Permissive(),
	)

	printBanner(cfg, Version)

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

	slog.Info("kestrel shutdown complete")
}

// loadScreeningRules loads screening rules from the repository.
// Rules are configured via POST /rules - no hardcoded defaults.
func loadScreeningRules(ctx context.Context, repo domain.Repository, engine *screening.Engine) error {
	rules, err := repo.ListScreeningRules(ctx)
	if err != nil {
		slog.Warn("failed to list screening rules", "error", err)
		return nil // Start with an empty rule set - rules can be added via API
	}

	if len(rules) > 0 {
		slog.Info("loading screening rules", "count", len(rules))
		return engine.LoadRules(rules)
	}

	slog.Info("no screening rules configured - add via POST /rules")
	return nil
}

// loadPatterns returns the newest persisted pattern snapshot, falling
// back to the configured defaults.
func loadPatterns(ctx context.Context, repo domain.Repository, cfg *domain.Config) *domain.PatternConfig {
	snap, err := repo.LatestPatternSnapshot(ctx)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Warn("failed to load pattern snapshot", "error", err)
		}
		return cfg.Patterns
	}

	slog.Info("loaded pattern snapshot",
		"snapshot_id", snap.ID,
		"created_at", snap.CreatedAt,
	)
	return &snap.Config
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🦅 KESTREL                  ║")
	fmt.Println("  ║       Fraud Risk Scoring Engine           ║")
	fmt.Println("  ║     Every transaction, weighed.           ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /analyze-transaction - Score a transaction")
	fmt.Println("    GET  /fraud-status        - Aggregate statistics")
	fmt.Println("    GET  /config/patterns     - Active pattern config")
	fmt.Println("    PUT  /config/patterns     - Update pattern config")
	fmt.Println("    PUT  /config/threshold    - Update fraud threshold")
	fmt.Println("    GET  /rules               - List screening rules")
	fmt.Println("    POST /rules               - Create a screening rule")
	fmt.Println("    POST /rules/reload        - Hot-reload screening rules")
	fmt.Println("    GET  /healthy             - Health check")
	fmt.Println()
}
