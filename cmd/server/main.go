/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the absence case lifecycle engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration from environment, apply flag overrides
  2. Initialize SQLite store (auto-migrates, seeds the default catalog)
  3. Build the note codec from NOTES_KEY (plaintext when unset)
  4. Wire services and the HTTP router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides HTTP_PORT)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/absence.db"

  # Run with encrypted notes
  NOTES_KEY=$(openssl rand -hex 32) ./server

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/warp/absence-engine/api"
	"github.com/warp/absence-engine/config"
	"github.com/warp/absence-engine/crypt"
	"github.com/warp/absence-engine/engine"
	"github.com/warp/absence-engine/milestone"
	"github.com/warp/absence-engine/sickness"
	"github.com/warp/absence-engine/store/sqlite"
	"github.com/warp/absence-engine/trigger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", "err", err)
	}

	// Flags override the environment
	port := flag.Int("port", cfg.HTTPPort, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           parseLevel(cfg.LogLevel),
	})

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		logger.Fatal("Failed to initialize database", "err", err)
	}
	defer store.Close()

	// Note codec: encrypted at rest when a key is configured
	var codec engine.Codec = engine.Plaintext{}
	if cfg.NotesKey != "" {
		codec, err = crypt.NewFromHex(cfg.NotesKey)
		if err != nil {
			logger.Fatal("Invalid NOTES_KEY", "err", err)
		}
	}

	// Wire services
	notifier := &engine.LogNotifier{Log: logger}
	catalog := milestone.NewCatalogService(store)
	evaluator := trigger.NewEvaluator(store, store, store, notifier, logger)
	cases := sickness.NewCaseService(store, catalog, evaluator, store, notifier, codec, logger)
	actions := milestone.NewActionService(store, store, store, codec, logger)
	milestoneConfigs := milestone.NewConfigService(store, store, logger)
	triggerConfigs := trigger.NewConfigService(store)

	handler := api.NewHandler(cases, catalog, actions, milestoneConfigs, triggerConfigs, evaluator, logger)
	router := api.NewRouter(handler, cfg.CORSOrigins)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server starting", "addr", fmt.Sprintf("http://localhost:%d/api", *port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", "err", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", "err", err)
	}

	logger.Info("Server stopped")
}

func parseLevel(s string) log.Level {
	level, err := log.ParseLevel(s)
	if err != nil {
		return log.InfoLevel
	}
	return level
}
