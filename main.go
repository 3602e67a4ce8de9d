package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"media-gallery/internal/database"
	"media-gallery/internal/gallery"
	"media-gallery/internal/handlers"
	"media-gallery/internal/logging"
	"media-gallery/internal/media"
	"media-gallery/internal/memory"
	"media-gallery/internal/middleware"
	"media-gallery/internal/rotation"
	"media-gallery/internal/scanner"
	"media-gallery/internal/startup"
	"media-gallery/internal/workers"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		logging.Error("Configuration error: %v", err)
		os.Exit(1)
	}

	// Configure the memory limit before anything allocates heavily
	memory.ConfigureFromEnv()

	// Initialize the native image pipeline (falls back to pure Go)
	if err := media.InitVips(); err != nil {
		logging.Warn("libvips unavailable, using pure-Go decoding: %v", err)
	}
	defer media.ShutdownVips()

	// Initialize database
	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DBPath, config.StorageDir)
	if err != nil {
		logging.Error("Failed to initialize database: %v", err)
		os.Exit(1)
	}
	defer db.Close()
	logging.Info("Database ready at %s in %v", config.DBPath, time.Since(dbStart))

	// Start the filesystem scanner in the background
	scan := scanner.New(db, config.StorageDir, config.ScanInterval)
	scan.Start()
	logging.Info("Scanner started for %s (interval %v)", config.StorageDir, config.ScanInterval)

	// Decode loader and record collection
	workerCount := workers.ForCPU(config.DecodeWorkerLimit)
	loader := gallery.NewLoader(db, workerCount)
	collection := gallery.NewCollection(db, loader, gallery.NewBuilder())
	collection.SetRotator(rotation.New(db))
	loader.Start()
	logging.Info("Decode loader started with %d workers", workerCount)

	// Populate the collection from whatever the index already holds;
	// the scanner fills in the rest as it walks the storage tree.
	if err := collection.Load(context.Background(), gallery.QueryAllMediaID); err != nil {
		logging.Warn("Initial collection load failed: %v", err)
	}
	logging.Info("Collection loaded with %d records", collection.Len())

	// Handlers and router
	h := handlers.New(collection, loader, scan, config)
	router := mux.NewRouter()
	h.Register(router)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	handler := middleware.Metrics(middleware.Logger(router))

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go handleShutdown(srv, scan, loader)

	logging.Info("Server listening on :%s (startup took %v)", config.Port, time.Since(startTime))
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		logging.Error("Server error: %v", err)
		os.Exit(1)
	}
}

// handleShutdown waits for SIGINT/SIGTERM and drains the server, the
// scanner and the decode loader before exiting.
func handleShutdown(srv *http.Server, scan *scanner.Scanner, loader *gallery.Loader) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logging.Info("Received %v, shutting down", sig)

	scan.Stop()
	loader.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Shutdown error: %v", err)
	}
}
