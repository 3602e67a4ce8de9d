package media

import (
	"fmt"
	"image"
	"math"
	"os"

	"media-gallery/internal/logging"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // WebP format support
)

const (
	// MaxRenderDimension keeps bitmaps below the rendering surface ceiling.
	MaxRenderDimension = 2048

	// MaxDecodePixels is the maximum total pixel count per decoded bitmap,
	// to limit RAM consumption.
	MaxDecodePixels = 4_000_000
)

// Dimensions holds image width and height in pixels.
type Dimensions struct {
	Width  int
	Height int
}

// ProbeDimensions returns an image's pixel dimensions from its header,
// without decoding pixel data.
func ProbeDimensions(path string) (Dimensions, error) {
	file, err := os.Open(path)
	if err != nil {
		return Dimensions{}, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", path, err)
		}
	}()

	config, _, err := image.DecodeConfig(file)
	if err != nil {
		return Dimensions{}, err
	}

	return Dimensions{Width: config.Width, Height: config.Height}, nil
}

// DecodeDimensions fully decodes an image solely to read its dimensions,
// in the same stored-pixel space the header probe reports.
// Last-resort fallback when the header probe fails.
func DecodeDimensions(path string) (Dimensions, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return Dimensions{}, err
	}
	b := img.Bounds()
	return Dimensions{Width: b.Dx(), Height: b.Dy()}, nil
}

// ThumbnailSize computes the decode target for a srcWidth x srcHeight image
// shown in a boxWidth x boxHeight box: the largest size that fits the box
// without upscaling beyond the source, further capped by maxDimension and
// maxPixels. The smaller constraint wins.
func ThumbnailSize(srcWidth, srcHeight, boxWidth, boxHeight, maxDimension, maxPixels int) Dimensions {
	if srcWidth <= 0 || srcHeight <= 0 {
		return Dimensions{}
	}

	scale := 1.0
	if boxWidth > 0 && boxHeight > 0 {
		sw := float64(boxWidth) / float64(srcWidth)
		sh := float64(boxHeight) / float64(srcHeight)
		if sw < sh {
			scale = sw
		} else {
			scale = sh
		}
	}
	if scale > 1.0 {
		// Never upscale beyond source resolution.
		scale = 1.0
	}

	width := int(float64(srcWidth) * scale)
	height := int(float64(srcHeight) * scale)

	if maxDimension > 0 && (width > maxDimension || height > maxDimension) {
		if width > height {
			height = height * maxDimension / width
			width = maxDimension
		} else {
			width = width * maxDimension / height
			height = maxDimension
		}
	}

	if maxPixels > 0 && width*height > maxPixels {
		shrink := math.Sqrt(float64(maxPixels) / float64(width*height))
		width = int(float64(width) * shrink)
		height = int(float64(height) * shrink)
	}

	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return Dimensions{Width: width, Height: height}
}

// LoadPhotoThumbnail decodes the largest bitmap that fits a
// boxWidth x boxHeight box for the image at path, honoring the pixel and
// dimension ceilings, and rotates the result per the orientation value
// (0/90/180/270 degrees clockwise).
//
// srcWidth/srcHeight are the caller's best knowledge of the source
// dimensions (from the content index); they size the decode target so the
// decoder can shrink on load instead of decoding full-size and scaling.
func LoadPhotoThumbnail(path string, srcWidth, srcHeight, boxWidth, boxHeight, orientation int) (image.Image, error) {
	// The box is in display space; for sideways orientations the decode
	// happens in sensor space, so the box swaps.
	if orientation == 90 || orientation == 270 {
		boxWidth, boxHeight = boxHeight, boxWidth
	}

	target := ThumbnailSize(srcWidth, srcHeight, boxWidth, boxHeight, MaxRenderDimension, MaxDecodePixels)
	if target.Width == 0 || target.Height == 0 {
		return nil, fmt.Errorf("no decode target for %s (%dx%d source)", path, srcWidth, srcHeight)
	}

	img, err := loadResized(path, target.Width, target.Height)
	if err != nil {
		return nil, err
	}

	return rotate(img, orientation), nil
}

// loadResized decodes path shrunk to roughly targetWidth x targetHeight.
// Prefers the libvips shrink-on-load path, which subsamples during decode
// and bounds peak memory; falls back to a pure-Go decode plus resize.
func loadResized(path string, targetWidth, targetHeight int) (image.Image, error) {
	if IsVipsAvailable() {
		img, err := loadImageWithVips(path, targetWidth, targetHeight)
		if err == nil {
			return img, nil
		}
		logging.Debug("vips load failed for %s: %v, falling back to pure-Go decode", path, err)
	}

	// No EXIF auto-orientation here: decode stays in stored-pixel space and
	// the caller rotates from the index's orientation value.
	img, err := imaging.Open(path)
	if err != nil {
		return nil, err
	}
	return imaging.Fit(img, targetWidth, targetHeight, imaging.Lanczos), nil
}

// rotate returns img rotated clockwise by the given orientation degrees.
func rotate(img image.Image, orientation int) image.Image {
	switch orientation {
	case 90:
		return imaging.Rotate270(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
