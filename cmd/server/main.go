/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the project-control server: resource utilization,
  rebalancing and cost analytics over HTTP.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Open the configured store (SQLite, Postgres or in-memory)
  3. Create API handler and router
  4. Start the EAC snapshot scheduler
  5. Start server with graceful shutdown

CONFIGURATION (flag / environment, flags win):
  -port               PORT               HTTP server port (default: 8080)
  -driver             DB_DRIVER          sqlite | postgres | memory (default: sqlite)
  -db                 DB_DSN             SQLite path (default: project-control.db) or Postgres DSN
  -snapshots          SNAPSHOT_ENABLED   periodic EAC snapshots (default: true)
  -snapshot-interval  SNAPSHOT_INTERVAL  e.g. 24h (default: 24h)
                      CORS_ORIGINS       comma-separated allowed origins

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler
  4. Close database connection

EXAMPLES:
  ./server -db="./data/projects.db"
  ./server -driver=memory -snapshots=false
  DB_DRIVER=postgres DB_DSN="host=localhost user=pc dbname=pc sslmode=disable" ./server

SEE ALSO:
  - config/config.go: Configuration loading
  - api/server.go: Router configuration
  - api/scheduler.go: Snapshot scheduler
*/
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/project-control/api"
	"github.com/warp/project-control/config"
	"github.com/warp/project-control/store/memory"
	"github.com/warp/project-control/store/postgres"
	"github.com/warp/project-control/store/sqlite"
)

type store interface {
	api.Store
	io.Closer
}

func openStore(cfg *config.Config) (store, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		return postgres.New(cfg.DBDSN)
	case config.DriverMemory:
		return memory.New(), nil
	default:
		return sqlite.New(cfg.DBDSN)
	}
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize store
	st, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer st.Close()
	log.Printf("Using %s store", cfg.DBDriver)

	// Initialize handler and router
	handler := api.NewHandler(st)
	router := api.NewRouter(handler, cfg.CORSOrigins)

	// Start snapshot scheduler
	scheduler := api.NewSnapshotScheduler(handler.Costs)
	scheduler.Interval = cfg.SnapshotInterval
	scheduler.Enabled = cfg.SnapshotEnabled
	scheduler.Start()

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
		log.Printf("Server starting on http://localhost:%d", cfg.Port)
		log.Printf("API available at http://localhost:%d/api", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	scheduler.Stop()

	log.Println("Server stopped")
}
