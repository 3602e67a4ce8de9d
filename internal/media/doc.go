// Package media provides the low-level decode primitives used by the
// gallery: header-only dimension probes, size-bounded thumbnail
// decoding (libvips shrink-on-load with a pure-Go fallback), orientation
// rotation, and video metadata/frame extraction via ffprobe and ffmpeg.
package media
