package gallery

import (
	"strings"
	"sync"
	"testing"
)

func TestKindString(t *testing.T) {
	t.Parallel()

	if got := KindPhoto.String(); got != "photo" {
		t.Errorf("KindPhoto.String() = %q, want %q", got, "photo")
	}
	if got := KindVideo.String(); got != "video" {
		t.Errorf("KindVideo.String() = %q, want %q", got, "video")
	}
	if got := KindPhoto.Table(); got != "photos" {
		t.Errorf("KindPhoto.Table() = %q, want %q", got, "photos")
	}
	if got := KindVideo.Table(); got != "videos" {
		t.Errorf("KindVideo.Table() = %q, want %q", got, "videos")
	}
}

func TestUsageGate(t *testing.T) {
	t.Parallel()

	r := &Record{kind: KindPhoto, contentID: 1}

	if r.InUse() {
		t.Error("new record should not be in use")
	}

	r.Prepare()
	if !r.InUse() {
		t.Error("record should be in use after Prepare")
	}

	r.Recycle()
	if r.InUse() {
		t.Error("record should not be in use after Recycle")
	}

	// An unmatched Recycle is a no-op, not a negative count.
	r.Recycle()
	if r.InUse() {
		t.Error("record should stay out of use after repeated Recycle")
	}
	r.Prepare()
	if !r.InUse() {
		t.Error("record should come back in use after Prepare")
	}
	r.Recycle()
}

func TestUsageGateOverlappingHolders(t *testing.T) {
	t.Parallel()

	r := &Record{kind: KindPhoto, contentID: 1}

	// Two independent holders, released in either order; the record stays
	// in use until the last one lets go.
	r.Prepare()
	r.Prepare()

	r.Recycle()
	if !r.InUse() {
		t.Error("record should stay in use while one holder remains")
	}

	r.Recycle()
	if r.InUse() {
		t.Error("record should be free once every holder released it")
	}
}

func TestUsageGateConcurrent(t *testing.T) {
	t.Parallel()

	r := &Record{kind: KindPhoto, contentID: 1}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Prepare()
				r.InUse()
				r.Recycle()
			}
		}()
	}
	wg.Wait()

	if r.InUse() {
		t.Error("record should end not in use")
	}
}

func TestKindSpecificAccessors(t *testing.T) {
	t.Parallel()

	photo := &Record{kind: KindPhoto, orientation: 90, durationSeconds: 42}
	video := &Record{kind: KindVideo, orientation: 90, durationSeconds: 42}

	if got := photo.Orientation(); got != 90 {
		t.Errorf("photo orientation = %d, want 90", got)
	}
	if got := video.Orientation(); got != 0 {
		t.Errorf("video orientation = %d, want 0", got)
	}
	if got := photo.DurationSeconds(); got != 0 {
		t.Errorf("photo duration = %d, want 0", got)
	}
	if got := video.DurationSeconds(); got != 42 {
		t.Errorf("video duration = %d, want 42", got)
	}
	if !photo.RotationSupported() {
		t.Error("photos should support rotation")
	}
	if video.RotationSupported() {
		t.Error("videos should not support rotation")
	}
	if !photo.reprobeOnDecode() {
		t.Error("photos should re-verify dimensions on decode")
	}
	if video.reprobeOnDecode() {
		t.Error("videos should not re-verify dimensions on decode")
	}
}

func TestLatLong(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		lat, lon float64
		wantOK   bool
	}{
		{name: "both zero means absent", lat: 0, lon: 0, wantOK: false},
		{name: "real location", lat: 49.25, lon: -123.1, wantOK: true},
		{name: "zero latitude only", lat: 0, lon: 10, wantOK: true},
		{name: "zero longitude only", lat: 10, lon: 0, wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := &Record{kind: KindPhoto, latitude: tt.lat, longitude: tt.lon}
			lat, lon, ok := r.LatLong()
			if ok != tt.wantOK {
				t.Fatalf("LatLong() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && (lat != tt.lat || lon != tt.lon) {
				t.Errorf("LatLong() = (%f, %f), want (%f, %f)", lat, lon, tt.lat, tt.lon)
			}
		})
	}
}

func TestDetails(t *testing.T) {
	t.Parallel()

	photo := &Record{
		kind:        KindPhoto,
		title:       "sunset",
		width:       100,
		height:      200,
		path:        "/media/sunset.jpg",
		orientation: 90,
		latitude:    49.25,
		longitude:   -123.1,
		sizeInBytes: 1234,
	}
	details := photo.Details()

	if details["title"] != "sunset" {
		t.Errorf("title = %v, want sunset", details["title"])
	}
	if details["orientation"] != 90 {
		t.Errorf("orientation = %v, want 90", details["orientation"])
	}
	if _, ok := details["duration"]; ok {
		t.Error("photo details should not include duration")
	}
	if _, ok := details["location"]; !ok {
		t.Error("details should include location when set")
	}
	if details["size"] != int64(1234) {
		t.Errorf("size = %v, want 1234", details["size"])
	}

	video := &Record{kind: KindVideo, title: "clip", durationSeconds: 12}
	details = video.Details()
	if details["duration"] != int64(12) {
		t.Errorf("duration = %v, want 12", details["duration"])
	}
	if _, ok := details["orientation"]; ok {
		t.Error("video details should not include orientation")
	}
	if _, ok := details["size"]; ok {
		t.Error("zero size should be omitted")
	}
	if _, ok := details["location"]; ok {
		t.Error("absent location should be omitted")
	}
}

func TestRecordString(t *testing.T) {
	t.Parallel()

	photo := &Record{kind: KindPhoto, path: "/media/a.jpg", mimeType: "image/jpeg"}
	if s := photo.String(); !strings.HasPrefix(s, "Photo:") || !strings.Contains(s, "/media/a.jpg") {
		t.Errorf("photo String() = %q", s)
	}

	video := &Record{kind: KindVideo, path: "/media/b.mp4", mimeType: "video/mp4"}
	if s := video.String(); !strings.HasPrefix(s, "Video:") || !strings.Contains(s, "/media/b.mp4") {
		t.Errorf("video String() = %q", s)
	}
}
