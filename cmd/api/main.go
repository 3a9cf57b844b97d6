package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smbt-dev/inspectgo/internal/blobstore/local"
	"github.com/smbt-dev/inspectgo/internal/config"
	"github.com/smbt-dev/inspectgo/internal/database"
	"github.com/smbt-dev/inspectgo/internal/handlers"
	"github.com/smbt-dev/inspectgo/internal/logging"
	"github.com/smbt-dev/inspectgo/internal/models"
	"github.com/smbt-dev/inspectgo/internal/services/catalog"
	"github.com/smbt-dev/inspectgo/internal/websocket"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "inspectgo: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	// 2. Initialize database (Detects Embedded vs External automatically)
	db, err := database.Connect(cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	// Note: db.Close() is called in the shutdown path below

	// 3. Auto-Migrate Schema and seed the photo catalog
	log.Info("synchronizing database schema")
	if err := db.AutoMigrate(models.All()...); err != nil {
		db.Close()
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	seed, err := catalog.ReadSeed(cfg.Catalog.SeedFile)
	if err != nil {
		db.Close()
		return err
	}
	n, err := catalog.Seed(context.Background(), db, seed)
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to seed catalog: %w", err)
	}
	log.Info("photo catalog seeded", zap.Int("categories", n))

	// 4. Blob storage and status feed
	blobs, err := local.New(cfg.Storage.UploadsDir, log)
	if err != nil {
		db.Close()
		return err
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := websocket.NewHub(log)
	go hub.Run(hubCtx)

	// 5. Set up HTTP router
	router := handlers.NewRouter(handlers.Deps{
		DB:     db,
		Config: cfg,
		Log:    log,
		Blobs:  blobs,
		Hub:    hub,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("port", cfg.Port), zap.String("env", cfg.NodeEnv))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case sig := <-shutdown:
		log.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server failed", zap.Error(err))
	}

	// Create context with timeout for graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Warn("HTTP server shutdown error", zap.Error(err))
	}
	stopHub()

	// Close database (this also stops embedded PostgreSQL)
	log.Info("closing database connection")
	if err := db.Close(); err != nil {
		log.Warn("database close error", zap.Error(err))
	}

	log.Info("shutdown complete")
	return nil
}
