/*
main.go - Application entry point

PURPOSE:
  Starts the tax calculation HTTP server. Handles configuration, dependency
  injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (defaults, TOML file, environment, flags)
  2. Initialize logger
  3. Initialize SQLite run archive
  4. Create API handler with dependencies
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides TAXENGINE_PORT)
  -db      SQLite database path (overrides TAXENGINE_DB)
           Use ":memory:" for an in-memory SQLite database, or "memory"
           for a process-local archive without SQLite

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/taxengine.db"

  # Run with in-memory database and a config file
  TAXENGINE_CONFIG=taxengine.toml ./server -db=":memory:"

SEE ALSO:
  - config/config.go: Environment and TOML configuration
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Run archive
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

	"github.com/warp/tax-engine/api"
	"github.com/warp/tax-engine/config"
	"github.com/warp/tax-engine/factory"
	"github.com/warp/tax-engine/generic"
	"github.com/warp/tax-engine/generic/store"
	"github.com/warp/tax-engine/logger"
	"github.com/warp/tax-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Flags override the environment
	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DatabasePath, `SQLite database path, or "memory"`)
	flag.Parse()
	cfg.Port = *port
	cfg.DatabasePath = *dbPath

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logger.SetGlobalLogger(log)

	// Initialize store
	archive, closeArchive, err := openArchive(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Str("db", cfg.DatabasePath).Msg("failed to initialize database")
	}
	defer closeArchive()

	// Initialize handler
	handler := api.NewHandler(archive, factory.NewRequestFactory(cfg.TaxYear, cfg.Elections), log)

	// Create router
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Int("port", cfg.Port).
			Str("db", cfg.DatabasePath).
			Str("tax_year", cfg.TaxYear).
			Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// openArchive returns the run archive for a database setting.
func openArchive(path string) (generic.RunArchive, func() error, error) {
	if path == "memory" {
		return store.NewMemory(), func() error { return nil }, nil
	}
	db, err := sqlite.New(path)
	if err != nil {
		return nil, nil, err
	}
	return db, db.Close, nil
}
