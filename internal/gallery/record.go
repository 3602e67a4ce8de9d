package gallery

import (
	"fmt"
	"sync"
	"time"
)

// Kind discriminates the two media kinds a record can hold.
type Kind int

const (
	// KindPhoto is a still image backed by the photos table.
	KindPhoto Kind = iota
	// KindVideo is a video backed by the videos table.
	KindVideo
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindPhoto:
		return "photo"
	case KindVideo:
		return "video"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Table returns the content index table holding this kind. A (table, id)
// pair addresses one item.
func (k Kind) Table() string {
	if k == KindVideo {
		return "videos"
	}
	return "photos"
}

// Record is an immutable snapshot of one media item's identity and metadata.
//
// Every field except the usage count is fixed at construction. A record is
// never corrected in place: when the index row changes (reconciliation,
// rotation), the owning collection builds a fresh record and replaces this
// one wholesale. That makes all metadata safe to read from any goroutine;
// the usage count is the only shared mutable state, behind its own lock.
type Record struct {
	kind                Kind
	contentID           int64
	title               string
	mimeType            string
	dateTakenSeconds    int64
	dateModifiedSeconds int64
	path                string
	// width and height are the stored pixel dimensions as the file decodes,
	// before the orientation is applied.
	width       int
	height      int
	sizeInBytes int64
	latitude    float64
	longitude   float64

	// orientation applies to photos only: 0, 90, 180 or 270.
	orientation int
	// durationSeconds applies to videos only.
	durationSeconds int64

	// usage count: positive while this record has at least one visible
	// surface that wants thumbnail results. Guards nothing else.
	usingMu  sync.Mutex
	useCount int
}

// Kind returns the record's media kind.
func (r *Record) Kind() Kind { return r.kind }

// ContentID returns the record's stable numeric key in the content index.
func (r *Record) ContentID() int64 { return r.contentID }

// Title returns the item's display title.
func (r *Record) Title() string { return r.title }

// MimeType returns the item's MIME type.
func (r *Record) MimeType() string { return r.mimeType }

// DateTaken returns the capture time in Unix seconds.
func (r *Record) DateTaken() int64 { return r.dateTakenSeconds }

// DateModified returns the file modification time in Unix seconds.
func (r *Record) DateModified() int64 { return r.dateModifiedSeconds }

// Path returns the item's filesystem location.
func (r *Record) Path() string { return r.path }

// Width returns the logical pixel width.
func (r *Record) Width() int { return r.width }

// Height returns the logical pixel height.
func (r *Record) Height() int { return r.height }

// SizeInBytes returns the file size.
func (r *Record) SizeInBytes() int64 { return r.sizeInBytes }

// Orientation returns the photo orientation in degrees (0/90/180/270).
// Always 0 for videos.
func (r *Record) Orientation() int {
	if r.kind != KindPhoto {
		return 0
	}
	return r.orientation
}

// DurationSeconds returns the video duration in whole seconds.
// Always 0 for photos.
func (r *Record) DurationSeconds() int64 {
	if r.kind != KindVideo {
		return 0
	}
	return r.durationSeconds
}

// LatLong returns the item's location. ok is false when the index holds the
// both-zero sentinel meaning "absent".
func (r *Record) LatLong() (latitude, longitude float64, ok bool) {
	if r.latitude == 0 && r.longitude == 0 {
		return 0, 0, false
	}
	return r.latitude, r.longitude, true
}

// Prepare registers one visible surface with the record. Decode results for
// this record may be applied until every Prepare is matched by a Recycle;
// independent holders can overlap without cancelling each other.
func (r *Record) Prepare() {
	r.usingMu.Lock()
	r.useCount++
	r.usingMu.Unlock()
}

// Recycle releases one Prepare. Once the count reaches zero any in-flight
// decode result for this record is silently discarded at apply time.
// Unmatched Recycles are no-ops.
func (r *Record) Recycle() {
	r.usingMu.Lock()
	if r.useCount > 0 {
		r.useCount--
	}
	r.usingMu.Unlock()
}

// InUse reports whether the record currently has a visible surface.
func (r *Record) InUse() bool {
	r.usingMu.Lock()
	defer r.usingMu.Unlock()
	return r.useCount > 0
}

// RotationSupported reports whether the 90-degree rotation pipeline can
// handle this record. Videos never support rotation.
func (r *Record) RotationSupported() bool {
	return r.kind == KindPhoto
}

// reprobeOnDecode reports whether decode attempts re-verify the file's real
// dimensions against the index. Photos only; video dimensions come from
// container metadata, which the index is not expected to drift from.
func (r *Record) reprobeOnDecode() bool {
	return r.kind == KindPhoto
}

// Details returns a display-ready metadata map for the item detail view.
func (r *Record) Details() map[string]any {
	details := map[string]any{
		"title":    r.title,
		"width":    r.width,
		"height":   r.height,
		"path":     r.path,
		"datetime": time.Unix(r.dateModifiedSeconds, 0).Format(time.RFC1123),
	}
	if r.sizeInBytes > 0 {
		details["size"] = r.sizeInBytes
	}
	if lat, lon, ok := r.LatLong(); ok {
		details["location"] = fmt.Sprintf("%f, %f", lat, lon)
	}
	switch r.kind {
	case KindPhoto:
		details["orientation"] = r.orientation
	case KindVideo:
		details["duration"] = r.durationSeconds
	}
	return details
}

// String renders the record for logs.
func (r *Record) String() string {
	switch r.kind {
	case KindVideo:
		return fmt.Sprintf("Video: data=%s, mimeType=%s, %dx%d, date=%s",
			r.path, r.mimeType, r.width, r.height, time.Unix(r.dateTakenSeconds, 0))
	default:
		return fmt.Sprintf("Photo: data=%s, mimeType=%s, %dx%d, orientation=%d, date=%s",
			r.path, r.mimeType, r.width, r.height, r.orientation, time.Unix(r.dateTakenSeconds, 0))
	}
}
