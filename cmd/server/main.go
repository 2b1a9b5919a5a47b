/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the gold ledger server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, then flags)
  2. Build the logger
  3. Initialize SQLite store
  4. Build the engine with the configured pricing rates
  5. Optionally seed a catalog
  6. Configure HTTP router and the consistency scheduler
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides PORT)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for in-memory database
  -seed    Catalog JSON file to load at startup, or "default"

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  # Run with file database
  ./server -db="./data/gold.db"

  # Run in memory with the demo catalog
  ./server -db=":memory:" -seed=default

SEE ALSO:
  - config/config.go: Environment keys
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/gold-ledger/api"
	"github.com/warp/gold-ledger/config"
	"github.com/warp/gold-ledger/factory"
	"github.com/warp/gold-ledger/gold"
	"github.com/warp/gold-ledger/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	port := flag.String("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	seed := flag.String("seed", "", `catalog JSON file to load, or "default"`)
	flag.Parse()
	cfg.Port = *port
	cfg.DBPath = *dbPath

	logger, err := config.NewLogger(cfg)
	if err != nil {
		logrus.Fatalf("Failed to build logger: %v", err)
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	engine := gold.NewEngine(store, logger, gold.WithItemConfig(cfg.Items))

	handler := api.NewHandler(engine, store, logger)
	if *seed != "" {
		if err := seedCatalog(context.Background(), handler.Catalogs, engine, *seed); err != nil {
			logger.WithError(err).Fatal("failed to seed catalog")
		}
		logger.WithField("source", *seed).Info("catalog seeded")
	}

	scheduler := api.NewConsistencyScheduler(engine, logger, cfg.ConsistencyCheckInterval)
	handler.Scheduler = scheduler
	scheduler.Start()

	router := api.NewRouter(handler, cfg.CORSOrigins)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{"port": cfg.Port, "db": cfg.DBPath}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("server forced to shutdown")
	}

	logger.Info("server stopped")
}

func seedCatalog(ctx context.Context, f *factory.CatalogFactory, engine *gold.Engine, source string) error {
	raw := factory.DefaultCatalogJSON
	if source != "default" {
		b, err := os.ReadFile(source)
		if err != nil {
			return err
		}
		raw = string(b)
	}
	catalog, err := f.ParseCatalog(raw)
	if err != nil {
		return err
	}
	return f.Seed(ctx, engine, catalog)
}
