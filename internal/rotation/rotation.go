package rotation

import (
	"context"
	"fmt"
	"image"
	"os"
	"time"

	"media-gallery/internal/database"
	"media-gallery/internal/gallery"
	"media-gallery/internal/logging"

	"github.com/disintegration/imaging"
)

// Pipeline rewrites a photo's file rotated by 90 degrees and updates its
// index row. It implements the gallery's Rotator boundary; the collection
// triggers it and rebuilds the record from the updated row afterwards.
type Pipeline struct {
	index *database.Database
}

// New creates a rotation pipeline writing through the given index.
func New(index *database.Database) *Pipeline {
	return &Pipeline{index: index}
}

// Rotate rewrites the record's file rotated 90 degrees clockwise or
// counter-clockwise, then updates the index row with the swapped
// dimensions, reset orientation and new file metadata.
func (p *Pipeline) Rotate(ctx context.Context, record *gallery.Record, clockwise bool) error {
	if record.Kind() != gallery.KindPhoto {
		return gallery.ErrRotationUnsupported
	}

	path := record.Path()
	img, err := imaging.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s for rotation: %w", path, err)
	}

	// imaging rotates counter-clockwise; a clockwise turn is CCW 270.
	var out image.Image = img
	if clockwise {
		out = imaging.Rotate270(img)
	} else {
		out = imaging.Rotate90(img)
	}

	if err := imaging.Save(out, path); err != nil {
		return fmt.Errorf("saving rotated %s: %w", path, err)
	}

	size := record.SizeInBytes()
	if info, statErr := os.Stat(path); statErr == nil {
		size = info.Size()
	}

	// The pixels are now upright: dimensions swap and orientation resets.
	err = p.index.Update(ctx, record.Kind().Table(), record.ContentID(), map[string]any{
		"width":         record.Height(),
		"height":        record.Width(),
		"orientation":   0,
		"size":          size,
		"date_modified": time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("updating index after rotation of %s/%d: %w",
			record.Kind().Table(), record.ContentID(), err)
	}

	logging.Info("Rotated %s (%s)", path, direction(clockwise))
	return nil
}

func direction(clockwise bool) string {
	if clockwise {
		return "clockwise"
	}
	return "counter-clockwise"
}
