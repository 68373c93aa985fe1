package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/user/gitsync/internal/config"
	"github.com/user/gitsync/internal/github"
	"github.com/user/gitsync/internal/httpapi"
	"github.com/user/gitsync/internal/ingest"
	"github.com/user/gitsync/internal/maintenance"
	"github.com/user/gitsync/internal/notifier"
	"github.com/user/gitsync/internal/storage"
	"github.com/user/gitsync/internal/summary"
	"github.com/user/gitsync/internal/vault"
	"github.com/user/gitsync/pkg/logger"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		// Try to initialize basic logger for error output
		logger.Init("info", "")
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	if err := logger.Init(cfg.Log.Level, cfg.Log.File); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	logger.Info().Msg("Starting GitSync")

	// Initialize database
	db, err := storage.NewDatabase(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	tenants := storage.NewTenantStore(db)
	events := storage.NewEventStore(db)
	facts := storage.NewFactStore(db, events)
	logger.Info().Str("path", cfg.Database.Path).Msg("Database initialized")

	// Initialize Telegram notifier
	tg, err := notifier.NewTelegram(cfg.Telegram.Token, cfg.Telegram.Debug, 30*time.Second)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize Telegram notifier")
	}

	// Initialize GitHub client and credential vault
	ghClient := github.NewClient(
		time.Duration(cfg.GitHub.CompareTimeoutSec)*time.Second,
		time.Duration(cfg.GitHub.ValidateTimeoutSec)*time.Second,
	)

	sealKey, err := cfg.SealKeyBytes()
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid vault seal key")
	}
	tokenVault := vault.New(tenants, sealKey, ghClient, tg,
		time.Duration(cfg.Vault.RequestExpiryMins)*time.Minute)

	resolver := github.NewResolver(ghClient, tokenVault, tg)

	// Initialize event processing
	gate := maintenance.NewFileGate(cfg.Maintenance.FlagFile)
	pool := ingest.NewPool(cfg.Workers.PoolSize, cfg.Workers.QueueSize)
	proc := ingest.NewProcessor(resolver, summary.NewText(), tg, events, facts)
	dispatcher := ingest.NewDispatcher(tenants, gate, events, pool, proc)

	// Set up HTTP router
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	api := httpapi.NewServer(dispatcher, tenants, facts, tokenVault, gate, cfg.Admin.Key, cfg.Workers.FlushBatch)
	api.Register(r)

	// Start HTTP server
	server := &http.Server{
		Addr:    cfg.ServerAddress(),
		Handler: r,
	}

	go func() {
		logger.Info().Str("address", cfg.ServerAddress()).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("Shutting down...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Stop HTTP server before draining the pool so no new work arrives
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	pool.Stop()

	logger.Info().Msg("Shutdown complete")
}
