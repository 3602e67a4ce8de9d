package scanner

import (
	"database/sql"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"media-gallery/internal/database"
	"media-gallery/internal/logging"
	"media-gallery/internal/media"
	"media-gallery/internal/metrics"
)

const (
	// Number of files to process before committing a batch
	batchSize = 500
)

// Scanner walks the storage directory and keeps the content index's rows in
// sync with the files on disk. It writes what it can determine cheaply;
// rows with missing dimensions are healed lazily by the gallery's builder
// and decode-time reconciliation.
type Scanner struct {
	db         *database.Database
	storageDir string
	interval   time.Duration

	stopChan chan struct{}
	stopOnce sync.Once
	scanMu   sync.Mutex

	filesIndexed atomic.Int64
	lastScan     atomic.Value // time.Time
}

// New creates a Scanner for storageDir rescanning every interval.
func New(db *database.Database, storageDir string, interval time.Duration) *Scanner {
	return &Scanner{
		db:         db,
		storageDir: storageDir,
		interval:   interval,
		stopChan:   make(chan struct{}),
	}
}

// Start runs an initial scan in the background, then rescans periodically.
func (s *Scanner) Start() {
	go func() {
		logging.Info("Starting initial scan of %s", s.storageDir)
		if err := s.Scan(); err != nil {
			logging.Error("Initial scan error: %v", err)
		}
	}()

	go s.periodicScan()
}

// Stop stops periodic rescans.
func (s *Scanner) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

// FilesIndexed returns the number of files written in the last scan pass.
func (s *Scanner) FilesIndexed() int64 {
	return s.filesIndexed.Load()
}

// LastScan returns when the last successful scan pass finished.
func (s *Scanner) LastScan() time.Time {
	if t, ok := s.lastScan.Load().(time.Time); ok {
		return t
	}
	return time.Time{}
}

func (s *Scanner) periodicScan() {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			if err := s.Scan(); err != nil {
				logging.Error("Periodic scan error: %v", err)
			}
		}
	}
}

// Scan performs one full pass: upsert every media file found under the
// storage directory, then drop rows whose files are gone.
func (s *Scanner) Scan() error {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	start := time.Now()
	s.filesIndexed.Store(0)

	var seenPhotos, seenVideos []string

	tx, err := s.db.BeginBatch()
	if err != nil {
		return err
	}
	batched := 0

	walkErr := filepath.WalkDir(s.storageDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.Warn("Scan error at %s: %v", path, err)
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != s.storageDir {
				return filepath.SkipDir
			}
			return nil
		}

		switch {
		case media.IsImagePath(path):
			if err := s.upsertPhoto(tx, path, d); err != nil {
				logging.Warn("Failed to index photo %s: %v", path, err)
				return nil
			}
			seenPhotos = append(seenPhotos, path)
			metrics.ScannerFilesIndexed.WithLabelValues("photo").Inc()
		case media.IsVideoPath(path):
			if err := s.upsertVideo(tx, path, d); err != nil {
				logging.Warn("Failed to index video %s: %v", path, err)
				return nil
			}
			seenVideos = append(seenVideos, path)
			metrics.ScannerFilesIndexed.WithLabelValues("video").Inc()
		default:
			return nil
		}

		s.filesIndexed.Add(1)
		batched++
		if batched >= batchSize {
			if err := s.db.EndBatch(tx, nil); err != nil {
				return err
			}
			var beginErr error
			tx, beginErr = s.db.BeginBatch()
			if beginErr != nil {
				return beginErr
			}
			batched = 0
		}
		return nil
	})

	if walkErr != nil {
		_ = s.db.EndBatch(tx, walkErr)
		return walkErr
	}

	if _, err := s.db.DeleteMissing(tx, database.TablePhotos, seenPhotos); err != nil {
		return s.db.EndBatch(tx, err)
	}
	if _, err := s.db.DeleteMissing(tx, database.TableVideos, seenVideos); err != nil {
		return s.db.EndBatch(tx, err)
	}

	if err := s.db.EndBatch(tx, nil); err != nil {
		return err
	}

	s.lastScan.Store(time.Now())
	metrics.ScannerDuration.Observe(time.Since(start).Seconds())
	logging.Info("Scan complete: %d files in %s", s.filesIndexed.Load(), time.Since(start).Round(time.Millisecond))
	return nil
}

func (s *Scanner) upsertPhoto(tx *sql.Tx, path string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}

	// Best effort: zero dimensions are legal here, the builder probes them
	// and the decode path reconciles drift.
	var width, height int
	if dims, err := media.ProbeDimensions(path); err == nil {
		width, height = dims.Width, dims.Height
	}

	return s.db.UpsertPhoto(tx, &database.PhotoRow{
		Title:        strings.TrimSuffix(d.Name(), filepath.Ext(d.Name())),
		MimeType:     media.MimeType(path),
		DateTaken:    info.ModTime().Unix(),
		DateModified: info.ModTime().Unix(),
		Path:         path,
		Orientation:  media.ProbeOrientation(path),
		Width:        width,
		Height:       height,
		Size:         info.Size(),
	})
}

func (s *Scanner) upsertVideo(tx *sql.Tx, path string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}

	row := &database.VideoRow{
		Title:        strings.TrimSuffix(d.Name(), filepath.Ext(d.Name())),
		MimeType:     media.MimeType(path),
		DateTaken:    info.ModTime().Unix(),
		DateModified: info.ModTime().Unix(),
		Path:         path,
		Size:         info.Size(),
	}

	// ffprobe failures leave zero dimensions for the builder to retry.
	if meta, err := media.ExtractVideoMetadata(path); err == nil {
		row.Width, row.Height = meta.Width, meta.Height
		if meta.Rotation == 90 || meta.Rotation == 270 {
			// Store logical, post-rotation dimensions.
			row.Width, row.Height = row.Height, row.Width
		}
		row.Resolution = fmt.Sprintf("%dx%d", row.Width, row.Height)
		row.DurationMillis = meta.DurationMillis
	} else {
		logging.Debug("Video metadata unavailable for %s: %v", path, err)
	}

	return s.db.UpsertVideo(tx, row)
}
