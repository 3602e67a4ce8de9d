package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"media-gallery/internal/logging"
	"media-gallery/internal/metrics"
)

// Default timeout for index operations
const defaultTimeout = 5 * time.Second

// Table names for the two media kinds. A (table, id) pair addresses one
// item, the Go analog of a per-item content URI.
const (
	TablePhotos = "photos"
	TableVideos = "videos"
)

// QueryAllID is the sentinel id lower bound that selects all media.
const QueryAllID = -1

// Database is the content index: one row of typed columns per media item,
// keyed by a stable numeric id.
type Database struct {
	db            *sql.DB
	dbPath        string
	storagePrefix string
	txStart       time.Time
}

// New opens (or creates) the content index at dbPath. Queries are filtered
// to paths under storageDir; the directory must already exist.
func New(ctx context.Context, dbPath, storageDir string) (*Database, error) {
	logging.Info("Content index path: %s", dbPath)

	// WAL mode so decode workers can read while the scanner writes.
	// busy_timeout helps prevent "database is locked" errors.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open content index: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close index after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to content index: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:            db,
		dbPath:        dbPath,
		storagePrefix: storageDir + "%",
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close index after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize index schema: %w", err)
	}

	logging.Info("Content index initialized at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS photos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		mime_type TEXT NOT NULL,
		date_taken INTEGER NOT NULL DEFAULT 0,
		date_modified INTEGER NOT NULL DEFAULT 0,
		path TEXT NOT NULL UNIQUE,
		orientation INTEGER NOT NULL DEFAULT 0,
		width INTEGER NOT NULL DEFAULT 0,
		height INTEGER NOT NULL DEFAULT 0,
		size INTEGER NOT NULL DEFAULT 0,
		latitude REAL NOT NULL DEFAULT 0,
		longitude REAL NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_photos_date_taken ON photos(date_taken DESC, id DESC);
	CREATE INDEX IF NOT EXISTS idx_photos_path ON photos(path);

	CREATE TABLE IF NOT EXISTS videos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		mime_type TEXT NOT NULL,
		date_taken INTEGER NOT NULL DEFAULT 0,
		date_modified INTEGER NOT NULL DEFAULT 0,
		path TEXT NOT NULL UNIQUE,
		width INTEGER NOT NULL DEFAULT 0,
		height INTEGER NOT NULL DEFAULT 0,
		resolution TEXT NOT NULL DEFAULT '',
		size INTEGER NOT NULL DEFAULT 0,
		latitude REAL NOT NULL DEFAULT 0,
		longitude REAL NOT NULL DEFAULT 0,
		duration INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_videos_date_taken ON videos(date_taken DESC, id DESC);
	CREATE INDEX IF NOT EXISTS idx_videos_path ON videos(path);
	`

	_, err := d.db.ExecContext(ctx, schema)
	return err
}

// Close closes the index connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Path returns the index file path.
func (d *Database) Path() string {
	return d.dbPath
}

// Query runs a projection query against one media table, filtered to the
// configured storage prefix and to ids strictly greater than minID
// (QueryAllID selects everything). The column order of the projection is a
// contract with the caller: rows are scanned positionally.
func (d *Database) Query(ctx context.Context, table string, columns []string, minID int64, orderBy string) (*sql.Rows, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("query_"+table, start, err) }()

	if err = validTable(table); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE path LIKE ? AND id > ?",
		joinColumns(columns), table)
	if orderBy != "" {
		query += " ORDER BY " + orderBy
	}

	var rows *sql.Rows
	rows, err = d.db.QueryContext(ctx, query, d.storagePrefix, minID)
	return rows, err
}

// QueryByID runs the same projection for a single item. Used by the
// collection's refresh path after a reconciliation or rotation.
func (d *Database) QueryByID(ctx context.Context, table string, columns []string, id int64) (*sql.Rows, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("query_by_id_"+table, start, err) }()

	if err = validTable(table); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", joinColumns(columns), table)

	var rows *sql.Rows
	rows, err = d.db.QueryContext(ctx, query, id)
	return rows, err
}

// Update writes the given column values for one item. Fire-and-forget from
// the caller's point of view: nothing beyond success/failure is reported.
func (d *Database) Update(ctx context.Context, table string, id int64, values map[string]any) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("update_"+table, start, err) }()

	if err = validTable(table); err != nil {
		return err
	}
	if len(values) == 0 {
		return errors.New("update with no values")
	}

	setClause := ""
	args := make([]any, 0, len(values)+1)
	for _, col := range sortedKeys(values) {
		if setClause != "" {
			setClause += ", "
		}
		setClause += col + " = ?"
		args = append(args, values[col])
	}
	args = append(args, id)

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", table, setClause), args...)
	return err
}

// UpdateDimensions writes corrected width/height for one item.
func (d *Database) UpdateDimensions(ctx context.Context, table string, id int64, width, height int) error {
	return d.Update(ctx, table, id, map[string]any{
		"width":  width,
		"height": height,
	})
}

// Delete removes one item's row from the index.
func (d *Database) Delete(ctx context.Context, table string, id int64) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_"+table, start, err) }()

	if err = validTable(table); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", table), id)
	return err
}

func validTable(table string) error {
	switch table {
	case TablePhotos, TableVideos:
		return nil
	}
	return fmt.Errorf("unknown media table %q", table)
}

func joinColumns(columns []string) string {
	out := ""
	for i, c := range columns {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}

func sortedKeys(values map[string]any) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// recordQuery records index query metrics.
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.IndexQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.IndexQueryDuration.WithLabelValues(operation).Observe(duration)
}
