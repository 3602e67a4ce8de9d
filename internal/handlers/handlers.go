package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"media-gallery/internal/gallery"
	"media-gallery/internal/logging"
	"media-gallery/internal/scanner"
	"media-gallery/internal/startup"

	"github.com/gorilla/mux"
)

// Handlers bundles the HTTP handlers with their collaborators.
type Handlers struct {
	collection *gallery.Collection
	loader     *gallery.Loader
	scanner    *scanner.Scanner
	config     *startup.Config
}

// New creates the handler set.
func New(collection *gallery.Collection, loader *gallery.Loader, scan *scanner.Scanner, config *startup.Config) *Handlers {
	return &Handlers{
		collection: collection,
		loader:     loader,
		scanner:    scan,
		config:     config,
	}
}

// Register attaches all routes to the router.
func (h *Handlers) Register(router *mux.Router) {
	router.HandleFunc("/api/records", h.ListRecords).Methods(http.MethodGet)
	router.HandleFunc("/api/records/{kind}/{id}", h.GetRecord).Methods(http.MethodGet)
	router.HandleFunc("/api/records/{kind}/{id}", h.DeleteRecord).Methods(http.MethodDelete)
	router.HandleFunc("/api/records/{kind}/{id}/thumbnail", h.Thumbnail).Methods(http.MethodGet)
	router.HandleFunc("/api/records/{kind}/{id}/rotate", h.Rotate).Methods(http.MethodPost)
	router.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet)
}

// recordJSON is the list/detail wire shape of one record.
type recordJSON struct {
	Kind         string  `json:"kind"`
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Path         string  `json:"path"`
	MimeType     string  `json:"mimeType"`
	DateTaken    int64   `json:"dateTaken"`
	DateModified int64   `json:"dateModified"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	Size         int64   `json:"size"`
	Latitude     float64 `json:"latitude,omitempty"`
	Longitude    float64 `json:"longitude,omitempty"`
	Orientation  int     `json:"orientation,omitempty"`
	Duration     int64   `json:"durationSeconds,omitempty"`
}

func toJSON(r *gallery.Record) recordJSON {
	out := recordJSON{
		Kind:         r.Kind().String(),
		ID:           r.ContentID(),
		Title:        r.Title(),
		Path:         r.Path(),
		MimeType:     r.MimeType(),
		DateTaken:    r.DateTaken(),
		DateModified: r.DateModified(),
		Width:        r.Width(),
		Height:       r.Height(),
		Size:         r.SizeInBytes(),
		Orientation:  r.Orientation(),
		Duration:     r.DurationSeconds(),
	}
	if lat, lon, ok := r.LatLong(); ok {
		out.Latitude = lat
		out.Longitude = lon
	}
	return out
}

// ListRecords returns the collection in display order.
func (h *Handlers) ListRecords(w http.ResponseWriter, r *http.Request) {
	records := h.collection.Records()
	out := make([]recordJSON, 0, len(records))
	for _, rec := range records {
		out = append(out, toJSON(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetRecord returns one record's metadata details.
func (h *Handlers) GetRecord(w http.ResponseWriter, r *http.Request) {
	record, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"record":  toJSON(record),
		"details": record.Details(),
	})
}

// DeleteRecord removes the record's file and index row.
func (h *Handlers) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	record, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := h.collection.Delete(r.Context(), record); err != nil {
		logging.Error("Delete of %s failed: %v", record, err)
		http.Error(w, "delete failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Rotate triggers the 90-degree rotation pipeline for a record.
func (h *Handlers) Rotate(w http.ResponseWriter, r *http.Request) {
	record, ok := h.lookup(w, r)
	if !ok {
		return
	}

	clockwise := r.URL.Query().Get("dir") != "ccw"

	err := h.collection.Rotate(r.Context(), record, clockwise)
	switch {
	case err == gallery.ErrRotationUnsupported:
		http.Error(w, "rotation not supported", http.StatusUnprocessableEntity)
	case err != nil:
		logging.Error("Rotation of %s failed: %v", record, err)
		http.Error(w, "rotation failed", http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// Healthz reports liveness plus scanner progress.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"records":      h.collection.Len(),
		"filesIndexed": h.scanner.FilesIndexed(),
		"lastScan":     h.scanner.LastScan(),
	})
}

// lookup resolves the {kind}/{id} path variables to a live record,
// writing the error response itself on failure.
func (h *Handlers) lookup(w http.ResponseWriter, r *http.Request) (*gallery.Record, bool) {
	vars := mux.Vars(r)

	var kind gallery.Kind
	switch vars["kind"] {
	case "photo":
		kind = gallery.KindPhoto
	case "video":
		kind = gallery.KindVideo
	default:
		http.Error(w, fmt.Sprintf("unknown kind %q", vars["kind"]), http.StatusBadRequest)
		return nil, false
	}

	id, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return nil, false
	}

	record, ok := h.collection.Get(kind, id)
	if !ok {
		http.Error(w, "record not found", http.StatusNotFound)
		return nil, false
	}
	return record, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("Failed to encode response: %v", err)
	}
}
