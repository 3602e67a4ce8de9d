package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// PhotoRow is the scanner-facing shape of one photos-table row.
type PhotoRow struct {
	Title        string
	MimeType     string
	DateTaken    int64
	DateModified int64
	Path         string
	Orientation  int
	Width        int
	Height       int
	Size         int64
	Latitude     float64
	Longitude    float64
}

// VideoRow is the scanner-facing shape of one videos-table row.
// DurationMillis is in the index's native milliseconds.
type VideoRow struct {
	Title          string
	MimeType       string
	DateTaken      int64
	DateModified   int64
	Path           string
	Width          int
	Height         int
	Resolution     string
	Size           int64
	Latitude       float64
	Longitude      float64
	DurationMillis int64
}

// BeginBatch starts a transaction for batch scanner writes.
// The caller is responsible for calling EndBatch when done.
func (d *Database) BeginBatch() (*sql.Tx, error) {
	d.txStart = time.Now()

	// Background context: the transaction's lifetime is managed by EndBatch,
	// not a timeout.
	return d.db.BeginTx(context.Background(), nil)
}

// EndBatch commits or rolls back a transaction.
func (d *Database) EndBatch(tx *sql.Tx, err error) error {
	duration := time.Since(d.txStart)

	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return commitErr
	}
	recordQuery("batch_commit", time.Now().Add(-duration), nil)
	return nil
}

// UpsertPhoto inserts or updates one photo row within a transaction,
// keyed by path. Declared dimensions are left untouched on conflict unless
// the file itself changed; the decode path reconciles drift later.
func (d *Database) UpsertPhoto(tx *sql.Tx, row *PhotoRow) error {
	query := `
	INSERT INTO photos (title, mime_type, date_taken, date_modified, path, orientation, width, height, size, latitude, longitude)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(path) DO UPDATE SET
		title = excluded.title,
		mime_type = excluded.mime_type,
		date_taken = excluded.date_taken,
		date_modified = excluded.date_modified,
		orientation = excluded.orientation,
		size = excluded.size,
		latitude = excluded.latitude,
		longitude = excluded.longitude,
		width = CASE
			WHEN photos.date_modified != excluded.date_modified THEN excluded.width
			ELSE photos.width
		END,
		height = CASE
			WHEN photos.date_modified != excluded.date_modified THEN excluded.height
			ELSE photos.height
		END
	`

	_, err := tx.ExecContext(context.Background(), query,
		row.Title, row.MimeType, row.DateTaken, row.DateModified, row.Path,
		row.Orientation, row.Width, row.Height, row.Size, row.Latitude, row.Longitude,
	)
	return err
}

// UpsertVideo inserts or updates one video row within a transaction,
// keyed by path.
func (d *Database) UpsertVideo(tx *sql.Tx, row *VideoRow) error {
	query := `
	INSERT INTO videos (title, mime_type, date_taken, date_modified, path, width, height, resolution, size, latitude, longitude, duration)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(path) DO UPDATE SET
		title = excluded.title,
		mime_type = excluded.mime_type,
		date_taken = excluded.date_taken,
		date_modified = excluded.date_modified,
		width = excluded.width,
		height = excluded.height,
		resolution = excluded.resolution,
		size = excluded.size,
		latitude = excluded.latitude,
		longitude = excluded.longitude,
		duration = excluded.duration
	`

	_, err := tx.ExecContext(context.Background(), query,
		row.Title, row.MimeType, row.DateTaken, row.DateModified, row.Path,
		row.Width, row.Height, row.Resolution, row.Size, row.Latitude, row.Longitude,
		row.DurationMillis,
	)
	return err
}

// seenPathChunk bounds the placeholders per insert, well under SQLite's
// bound-variable limit.
const seenPathChunk = 500

// DeleteMissing removes rows whose files were not seen during a scan pass.
// Must be called within a transaction.
//
// The seen paths are staged into a temp table in chunks rather than bound
// into one statement, so a library of any size stays within SQLite's
// bound-variable limit.
func (d *Database) DeleteMissing(tx *sql.Tx, table string, seenPaths []string) (int64, error) {
	if err := validTable(table); err != nil {
		return 0, err
	}

	ctx := context.Background()

	if len(seenPaths) == 0 {
		result, err := tx.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE path LIKE ?", table), d.storagePrefix)
		if err != nil {
			return 0, err
		}
		return result.RowsAffected()
	}

	// Temp tables are per-connection; the transaction pins one, and the
	// table is cleared between the photos and videos passes.
	if _, err := tx.ExecContext(ctx,
		"CREATE TEMP TABLE IF NOT EXISTS scan_seen (path TEXT PRIMARY KEY) WITHOUT ROWID"); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM scan_seen"); err != nil {
		return 0, err
	}

	for start := 0; start < len(seenPaths); start += seenPathChunk {
		end := start + seenPathChunk
		if end > len(seenPaths) {
			end = len(seenPaths)
		}
		chunk := seenPaths[start:end]

		placeholders := strings.TrimSuffix(strings.Repeat("(?),", len(chunk)), ",")
		args := make([]any, len(chunk))
		for i, p := range chunk {
			args[i] = p
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO scan_seen (path) VALUES "+placeholders, args...); err != nil {
			return 0, err
		}
	}

	result, err := tx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE path LIKE ? AND path NOT IN (SELECT path FROM scan_seen)", table),
		d.storagePrefix)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
