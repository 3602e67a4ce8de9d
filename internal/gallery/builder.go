package gallery

import (
	"fmt"

	"media-gallery/internal/logging"
	"media-gallery/internal/media"
	"media-gallery/internal/metrics"
)

// Photo projection column indexes. These must be kept in sync with
// PhotoColumns below: rows are scanned positionally and reordering either
// side breaks decoding.
const (
	photoColID = iota
	photoColTitle
	photoColMimeType
	photoColDateTaken
	photoColDateModified
	photoColData
	photoColOrientation
	photoColWidth
	photoColHeight
	photoColSize
	photoColLatitude
	photoColLongitude
)

// Video projection column indexes. Same contract as the photo columns.
const (
	videoColID = iota
	videoColTitle
	videoColMimeType
	videoColDateTaken
	videoColDateModified
	videoColData
	videoColWidth
	videoColHeight
	videoColResolution
	videoColSize
	videoColLatitude
	videoColLongitude
	videoColDuration
)

// durationUnitsPerSecond converts the index's native duration units
// (milliseconds) to seconds.
const durationUnitsPerSecond = 1000

// PhotoColumns is the photos-table projection, in contract order.
var PhotoColumns = []string{
	"id",            // 0, int
	"title",         // 1, string
	"mime_type",     // 2, string
	"date_taken",    // 3, int
	"date_modified", // 4, int
	"path",          // 5, string
	"orientation",   // 6, int: 0, 90, 180, 270
	"width",         // 7, int
	"height",        // 8, int
	"size",          // 9, int
	"latitude",      // 10, float
	"longitude",     // 11, float
}

// VideoColumns is the videos-table projection, in contract order.
var VideoColumns = []string{
	"id",            // 0, int
	"title",         // 1, string
	"mime_type",     // 2, string
	"date_taken",    // 3, int
	"date_modified", // 4, int
	"path",          // 5, string
	"width",         // 6, int
	"height",        // 7, int
	"resolution",    // 8, string
	"size",          // 9, int
	"latitude",      // 10, float
	"longitude",     // 11, float
	"duration",      // 12, int, milliseconds
}

// QueryOrder sorts newest first, ties broken by id.
const QueryOrder = "date_taken DESC, id DESC"

// RowScanner is one positional row of an index query. *sql.Rows and
// *sql.Row both satisfy it.
type RowScanner interface {
	Scan(dest ...any) error
}

// Prober recovers image dimensions for photo rows whose declared dimensions
// are unusable. The default implementation probes the file header and falls
// back to a full decode; tests substitute their own.
type Prober interface {
	ProbeDimensions(path string) (media.Dimensions, error)
	DecodeDimensions(path string) (media.Dimensions, error)
}

// VideoProber extracts container metadata for video rows with zero declared
// dimensions.
type VideoProber interface {
	ExtractVideoMetadata(path string) (media.VideoMetadata, error)
}

// fileProber implements Prober and VideoProber against the real filesystem.
type fileProber struct{}

func (fileProber) ProbeDimensions(path string) (media.Dimensions, error) {
	return media.ProbeDimensions(path)
}

func (fileProber) DecodeDimensions(path string) (media.Dimensions, error) {
	return media.DecodeDimensions(path)
}

func (fileProber) ExtractVideoMetadata(path string) (media.VideoMetadata, error) {
	return media.ExtractVideoMetadata(path)
}

// Builder maps index rows to records. The zero value is not usable; call
// NewBuilder.
type Builder struct {
	prober      Prober
	videoProber VideoProber
}

// NewBuilder returns a Builder backed by real file probes.
func NewBuilder() *Builder {
	return &Builder{prober: fileProber{}, videoProber: fileProber{}}
}

// BuildPhoto maps one photos-table row into a record.
//
// A failure means "skip this row": the error is for the caller's diagnostic
// log, never surfaced to a user. When the row declares non-positive
// dimensions the file's header is probed; if that fails too, a full decode
// is the last resort before giving up on the row.
func (b *Builder) BuildPhoto(row RowScanner) (*Record, error) {
	r := &Record{kind: KindPhoto}
	err := row.Scan(
		&r.contentID,
		&r.title,
		&r.mimeType,
		&r.dateTakenSeconds,
		&r.dateModifiedSeconds,
		&r.path,
		&r.orientation,
		&r.width,
		&r.height,
		&r.sizeInBytes,
		&r.latitude,
		&r.longitude,
	)
	if err != nil {
		metrics.RowBuildFailuresTotal.WithLabelValues(KindPhoto.String()).Inc()
		return nil, fmt.Errorf("photo row scan failed: %w", err)
	}

	if r.width <= 0 || r.height <= 0 {
		logging.Warn("Zero dimension in index for %s: %dx%d", r.path, r.width, r.height)

		dims, probeErr := b.prober.ProbeDimensions(r.path)
		if probeErr != nil || dims.Width <= 0 || dims.Height <= 0 {
			logging.Warn("Dimension probe failed for %s", r.path)
			dims, probeErr = b.prober.DecodeDimensions(r.path)
			if probeErr != nil {
				metrics.RowBuildFailuresTotal.WithLabelValues(KindPhoto.String()).Inc()
				return nil, fmt.Errorf("photo row skipped, decoding %s failed: %w", r.path, probeErr)
			}
			if dims.Width == 0 || dims.Height == 0 {
				metrics.RowBuildFailuresTotal.WithLabelValues(KindPhoto.String()).Inc()
				return nil, fmt.Errorf("photo row skipped, decoded size 0 for %s", r.path)
			}
		}
		r.width = dims.Width
		r.height = dims.Height
	}

	return r, nil
}

// BuildVideo maps one videos-table row into a record.
//
// When the row declares zero dimensions the container metadata is
// extracted; rotation metadata of 90 or 270 swaps width and height so the
// stored dimensions are always logical, post-rotation values. Duration is
// normalized from the index's native milliseconds to whole seconds,
// truncating.
func (b *Builder) BuildVideo(row RowScanner) (*Record, error) {
	r := &Record{kind: KindVideo}
	var resolution string
	var durationMillis int64
	err := row.Scan(
		&r.contentID,
		&r.title,
		&r.mimeType,
		&r.dateTakenSeconds,
		&r.dateModifiedSeconds,
		&r.path,
		&r.width,
		&r.height,
		&resolution,
		&r.sizeInBytes,
		&r.latitude,
		&r.longitude,
		&durationMillis,
	)
	if err != nil {
		metrics.RowBuildFailuresTotal.WithLabelValues(KindVideo.String()).Inc()
		return nil, fmt.Errorf("video row scan failed: %w", err)
	}

	if r.width == 0 || r.height == 0 {
		meta, metaErr := b.videoProber.ExtractVideoMetadata(r.path)
		if metaErr != nil {
			metrics.RowBuildFailuresTotal.WithLabelValues(KindVideo.String()).Inc()
			return nil, fmt.Errorf("video metadata extraction failed for %s: %w", r.path, metaErr)
		}
		if meta.Width == 0 || meta.Height == 0 {
			metrics.RowBuildFailuresTotal.WithLabelValues(KindVideo.String()).Inc()
			return nil, fmt.Errorf("unable to retrieve dimensions of video %s", r.path)
		}
		r.width = meta.Width
		r.height = meta.Height
		if meta.Rotation == 90 || meta.Rotation == 270 {
			r.width, r.height = r.height, r.width
		}
	}

	r.durationSeconds = durationMillis / durationUnitsPerSecond

	return r, nil
}

// Build dispatches on kind.
func (b *Builder) Build(kind Kind, row RowScanner) (*Record, error) {
	if kind == KindVideo {
		return b.BuildVideo(row)
	}
	return b.BuildPhoto(row)
}

// Columns returns the projection for a kind, in contract order.
func Columns(kind Kind) []string {
	if kind == KindVideo {
		return VideoColumns
	}
	return PhotoColumns
}
