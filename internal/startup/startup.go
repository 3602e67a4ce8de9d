package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"media-gallery/internal/logging"
)

// Config holds the application configuration, loaded from environment
// variables.
type Config struct {
	// StorageDir is the root of the media files the gallery serves.
	StorageDir string

	// DBPath is the content index file location.
	DBPath string

	// Port is the HTTP listen port.
	Port string

	// ScanInterval is how often the scanner re-walks the storage directory.
	ScanInterval time.Duration

	// DefaultBoxSize is the thumbnail box edge used when a request does not
	// specify one.
	DefaultBoxSize int

	// DecodeWorkerLimit caps the decode worker pool.
	DecodeWorkerLimit int
}

// LoadConfig reads configuration from the environment and validates the
// directories it names.
//
// Environment variables:
//   - STORAGE_DIR: media root (default ./media, must exist)
//   - DATA_DIR: writable directory for the index (default ./data, created)
//   - PORT: HTTP listen port (default 8080)
//   - SCAN_INTERVAL: rescan interval, Go duration syntax (default 1h)
//   - THUMBNAIL_BOX: default thumbnail box edge in pixels (default 256)
//   - DECODE_WORKER_LIMIT: cap on decode workers (default 8)
func LoadConfig() (*Config, error) {
	cfg := &Config{
		StorageDir:        envOr("STORAGE_DIR", "./media"),
		Port:              envOr("PORT", "8080"),
		ScanInterval:      time.Hour,
		DefaultBoxSize:    256,
		DecodeWorkerLimit: 8,
	}

	abs, err := filepath.Abs(cfg.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("resolving STORAGE_DIR: %w", err)
	}
	cfg.StorageDir = abs

	info, err := os.Stat(cfg.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("STORAGE_DIR %s not accessible: %w", cfg.StorageDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("STORAGE_DIR %s is not a directory", cfg.StorageDir)
	}

	dataDir := envOr("DATA_DIR", "./data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating DATA_DIR %s: %w", dataDir, err)
	}
	cfg.DBPath = filepath.Join(dataDir, "gallery.db")

	if v := os.Getenv("SCAN_INTERVAL"); v != "" {
		interval, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SCAN_INTERVAL %q: %w", v, err)
		}
		cfg.ScanInterval = interval
	}

	if v := os.Getenv("THUMBNAIL_BOX"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size < 1 {
			return nil, fmt.Errorf("invalid THUMBNAIL_BOX %q", v)
		}
		cfg.DefaultBoxSize = size
	}

	if v := os.Getenv("DECODE_WORKER_LIMIT"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return nil, fmt.Errorf("invalid DECODE_WORKER_LIMIT %q", v)
		}
		cfg.DecodeWorkerLimit = limit
	}

	logging.Info("Storage dir: %s", cfg.StorageDir)
	logging.Info("Index path: %s", cfg.DBPath)
	logging.Info("Scan interval: %s, thumbnail box: %d", cfg.ScanInterval, cfg.DefaultBoxSize)

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
