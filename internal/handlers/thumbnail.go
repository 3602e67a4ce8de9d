package handlers

import (
	"image"
	"image/jpeg"
	"net/http"
	"strconv"
	"sync"

	"media-gallery/internal/gallery"
	"media-gallery/internal/logging"
	"media-gallery/internal/media"
)

// httpSurface adapts one HTTP response to the loader's display surface.
// Each request gets its own surface, so concurrent requests for the same
// record never supersede each other.
type httpSurface struct {
	mu  sync.Mutex
	img image.Image
}

func (s *httpSurface) SetPlaceholder(img image.Image) {
	// An HTTP client sees nothing until the final image arrives, so the
	// placeholder is intentionally dropped.
}

func (s *httpSurface) SetImage(img image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.img = img
}

func (s *httpSurface) image() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.img
}

// Thumbnail produces a bounded thumbnail for one record through the
// async loader and streams it back as JPEG.
func (h *Handlers) Thumbnail(w http.ResponseWriter, r *http.Request) {
	record, ok := h.lookup(w, r)
	if !ok {
		return
	}

	boxWidth := queryInt(r, "w", h.config.DefaultBoxSize)
	boxHeight := queryInt(r, "h", h.config.DefaultBoxSize)
	if boxWidth <= 0 || boxHeight <= 0 {
		http.Error(w, "box dimensions must be positive", http.StatusBadRequest)
		return
	}
	if boxWidth > media.MaxRenderDimension {
		boxWidth = media.MaxRenderDimension
	}
	if boxHeight > media.MaxRenderDimension {
		boxHeight = media.MaxRenderDimension
	}

	// Hold the record in use for the lifetime of this request so the
	// decode result is not discarded before we can stream it.
	record.Prepare()
	defer record.Recycle()

	surface := &httpSurface{}
	done := h.loader.Submit(record, surface, boxWidth, boxHeight)
	defer h.loader.Forget(surface)

	select {
	case <-r.Context().Done():
		return
	case result := <-done:
		switch result {
		case gallery.ResultApplied:
			img := surface.image()
			if img == nil {
				http.Error(w, "decode produced no image", http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "image/jpeg")
			w.Header().Set("Cache-Control", "private, max-age=3600")
			if err := jpeg.Encode(w, img, &jpeg.Options{Quality: 85}); err != nil {
				logging.Debug("Thumbnail stream for %s aborted: %v", record, err)
			}
		case gallery.ResultNeedsRefresh:
			// Stored dimensions were stale. The reconciliation write and
			// record refresh are already underway, so ask the client to
			// come back for the corrected record.
			w.Header().Set("Retry-After", "1")
			http.Error(w, "record refreshing", http.StatusServiceUnavailable)
		case gallery.ResultFailed:
			http.Error(w, "decode failed", http.StatusInternalServerError)
		default:
			http.Error(w, "thumbnail unavailable", http.StatusConflict)
		}
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
