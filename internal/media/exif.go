package media

import (
	"os"

	"media-gallery/internal/logging"

	"github.com/rwcarlsen/goexif/exif"
)

// ProbeOrientation reads the EXIF orientation tag and returns the clockwise
// rotation in degrees (0, 90, 180 or 270) needed to display the stored
// pixels upright. Files without EXIF data, which is the common case for
// anything but camera output, report 0.
//
// Mirrored orientations map to their rotation component; the mirror itself
// is not represented.
func ProbeOrientation(path string) int {
	file, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", path, err)
		}
	}()

	meta, err := exif.Decode(file)
	if err != nil {
		return 0
	}
	tag, err := meta.Get(exif.Orientation)
	if err != nil {
		return 0
	}
	value, err := tag.Int(0)
	if err != nil {
		return 0
	}

	switch value {
	case 3, 4:
		return 180
	case 5, 6:
		return 90
	case 7, 8:
		return 270
	default:
		return 0
	}
}
