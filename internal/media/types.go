package media

import (
	"mime"
	"path/filepath"
	"strings"
)

// ImageExtensions maps file extensions to whether they are supported image formats.
var ImageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".bmp": true, ".webp": true, ".tiff": true, ".tif": true,
	".heic": true, ".heif": true,
}

// VideoExtensions maps file extensions to whether they are supported video formats.
var VideoExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true,
	".wmv": true, ".flv": true, ".webm": true, ".m4v": true,
	".mpeg": true, ".mpg": true, ".3gp": true, ".ts": true,
}

// IsImagePath reports whether path has a supported image extension.
func IsImagePath(path string) bool {
	return ImageExtensions[strings.ToLower(filepath.Ext(path))]
}

// IsVideoPath reports whether path has a supported video extension.
func IsVideoPath(path string) bool {
	return VideoExtensions[strings.ToLower(filepath.Ext(path))]
}

// MimeType guesses a media file's MIME type from its extension.
func MimeType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	switch {
	case ImageExtensions[ext]:
		return "image/" + strings.TrimPrefix(ext, ".")
	case VideoExtensions[ext]:
		return "video/" + strings.TrimPrefix(ext, ".")
	}
	return "application/octet-stream"
}
