/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the addition engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env, then config.toml, then environment overrides
  2. Apply command-line flags
  3. Open the configured store (sqlite, postgres or memory)
  4. Install a custom catalog if one is configured
  5. Create API handler and router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Config file path (default: config.toml, optional)
  -port    HTTP server port (overrides config)
  -db      SQLite database path (overrides config)
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close the store
  4. Exit

EXAMPLES:
  ./server -db="./data/additions.db"
  ./server -port=3000
  DATABASE_URL=postgres://localhost/additions ADDITION_ENGINE_DB_DRIVER=postgres ./server

SEE ALSO:
  - config/config.go: Configuration sources and precedence
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/warp/addition-engine/api"
	"github.com/warp/addition-engine/config"
	"github.com/warp/addition-engine/simulation"
	"github.com/warp/addition-engine/staffing"
	"github.com/warp/addition-engine/store/memory"
	"github.com/warp/addition-engine/store/postgres"
	"github.com/warp/addition-engine/store/sqlite"
)

func main() {
	configPath := flag.String("config", "config.toml", "Config file path")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	if err := run(*configPath, *port, *dbPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, port int, dbPath string) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, info, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if dbPath != "" {
		cfg.Database.Driver = config.DriverSQLite
		cfg.Database.Path = dbPath
	}

	logger := cfg.Log.Logger(os.Stderr)
	slog.SetDefault(logger)
	logger.Info("configuration loaded",
		"file", configPath, "file_found", info.FileFound, "driver", cfg.Database.Driver)

	ctx := context.Background()
	backend, closeStore, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer closeStore()

	defaults, err := cfg.Billing.Constants()
	if err != nil {
		return err
	}
	opts := []simulation.Option{simulation.WithDefaultConstants(defaults)}
	if cfg.Staffing.EnforceRequirements {
		opts = append(opts, simulation.WithRequirements(staffing.DefaultRequirements()...))
	}

	handler := api.NewHandler(backend, logger, opts...)
	if cfg.Catalog.File != "" {
		catalog, err := handler.Catalogs.LoadFile(cfg.Catalog.File)
		if err != nil {
			return err
		}
		if err := handler.UseCatalog(ctx, catalog.All()); err != nil {
			return err
		}
		logger.Info("custom catalog installed", "file", cfg.Catalog.File, "additions", catalog.Len())
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(handler, cfg.Server.CORSOrigins...),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", fmt.Sprintf("http://localhost:%d", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errc:
		return err
	case <-quit:
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, db config.DatabaseConfig) (simulation.Backend, func(), error) {
	switch db.Driver {
	case config.DriverMemory:
		return memory.New(), func() {}, nil
	case config.DriverPostgres:
		store, err := postgres.New(ctx, db.URL)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		if db.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(db.Path), 0o755); err != nil {
				return nil, nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		store, err := sqlite.New(db.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return store, func() { store.Close() }, nil
	}
}
