package gallery

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"media-gallery/internal/media"
)

// fakeSurface records what the dispatcher hands it.
type fakeSurface struct {
	mu        sync.Mutex
	images    []image.Image
	setCalled int
}

func (s *fakeSurface) SetPlaceholder(img image.Image) {}

func (s *fakeSurface) SetImage(img image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images = append(s.images, img)
	s.setCalled++
}

func (s *fakeSurface) setCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setCalled
}

func (s *fakeSurface) lastImage() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.images) == 0 {
		return nil
	}
	return s.images[len(s.images)-1]
}

// fakeIndex records dimension correction writes.
type fakeIndex struct {
	mu     sync.Mutex
	writes []dimWrite
	err    error
}

type dimWrite struct {
	table         string
	id            int64
	width, height int
}

func (f *fakeIndex) UpdateDimensions(ctx context.Context, table string, id int64, width, height int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.writes = append(f.writes, dimWrite{table, id, width, height})
	return nil
}

func (f *fakeIndex) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

// fakeRefresher records refresh requests.
type fakeRefresher struct {
	mu       sync.Mutex
	requests []recordKey
}

func (f *fakeRefresher) RequestRefresh(kind Kind, id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, recordKey{kind, id})
}

func (f *fakeRefresher) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func testPhotoRecord(id int64, width, height int) *Record {
	return &Record{
		kind:      KindPhoto,
		contentID: id,
		path:      "/media/test.jpg",
		width:     width,
		height:    height,
	}
}

func testVideoRecord(id int64, width, height int) *Record {
	return &Record{
		kind:      KindVideo,
		contentID: id,
		path:      "/media/test.mp4",
		width:     width,
		height:    height,
	}
}

// newTestLoader returns a started loader whose decode seams succeed with a
// solid image and whose dimension probe confirms the record's stored size.
func newTestLoader(t *testing.T, index *fakeIndex, workerCount int) *Loader {
	t.Helper()

	l := NewLoader(index, workerCount)
	l.probeDims = func(path string) (media.Dimensions, error) {
		return media.Dimensions{}, errors.New("no probe configured")
	}
	l.loadPhoto = func(path string, srcWidth, srcHeight, boxWidth, boxHeight, orientation int) (image.Image, error) {
		return image.NewRGBA(image.Rect(0, 0, boxWidth, boxHeight)), nil
	}
	l.extractFrame = func(path string) (image.Image, error) {
		return image.NewRGBA(image.Rect(0, 0, 640, 480)), nil
	}
	l.Start()
	t.Cleanup(l.Stop)
	return l
}

func waitResult(t *testing.T, done <-chan Result) Result {
	t.Helper()
	select {
	case r := <-done:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for task result")
		return ResultFailed
	}
}

func TestLoaderAppliesDecodedThumbnail(t *testing.T) {
	t.Parallel()

	l := newTestLoader(t, &fakeIndex{}, 2)
	record := testPhotoRecord(1, 640, 480)
	record.Prepare()
	surface := &fakeSurface{}

	result := waitResult(t, l.Submit(record, surface, 50, 50))

	if result != ResultApplied {
		t.Fatalf("result = %s, want applied", result)
	}
	if surface.setCount() != 1 {
		t.Errorf("SetImage called %d times, want 1", surface.setCount())
	}
	if surface.lastImage() == nil {
		t.Error("surface received a nil image")
	}
}

func TestLoaderDiscardsResultAfterRecycle(t *testing.T) {
	t.Parallel()

	l := newTestLoader(t, &fakeIndex{}, 1)
	record := testPhotoRecord(1, 640, 480)
	record.Prepare()
	surface := &fakeSurface{}

	decodeStarted := make(chan struct{})
	release := make(chan struct{})
	l.loadPhoto = func(path string, srcWidth, srcHeight, boxWidth, boxHeight, orientation int) (image.Image, error) {
		close(decodeStarted)
		<-release
		return image.NewRGBA(image.Rect(0, 0, 10, 10)), nil
	}

	done := l.Submit(record, surface, 50, 50)
	<-decodeStarted

	// The surface scrolled away mid-decode.
	record.Recycle()
	close(release)

	if result := waitResult(t, done); result != ResultCancelled {
		t.Fatalf("result = %s, want cancelled", result)
	}
	if surface.setCount() != 0 {
		t.Errorf("a recycled record's bitmap reached the surface (%d calls)", surface.setCount())
	}
}

func TestLoaderAppliesWhileAnotherHolderRemains(t *testing.T) {
	t.Parallel()

	l := newTestLoader(t, &fakeIndex{}, 1)
	record := testPhotoRecord(1, 640, 480)

	// Two concurrent requests hold the same record.
	record.Prepare()
	record.Prepare()
	surface := &fakeSurface{}

	decodeStarted := make(chan struct{})
	release := make(chan struct{})
	l.loadPhoto = func(path string, srcWidth, srcHeight, boxWidth, boxHeight, orientation int) (image.Image, error) {
		close(decodeStarted)
		<-release
		return image.NewRGBA(image.Rect(0, 0, 10, 10)), nil
	}

	done := l.Submit(record, surface, 50, 50)
	<-decodeStarted

	// The other request finishes and releases its hold mid-decode; ours
	// is still waiting and must get its bitmap.
	record.Recycle()
	close(release)

	if result := waitResult(t, done); result != ResultApplied {
		t.Fatalf("result = %s, want applied", result)
	}
	if surface.setCount() != 1 {
		t.Errorf("SetImage called %d times, want 1", surface.setCount())
	}
	record.Recycle()
}

func TestLoaderSupersedesOlderTask(t *testing.T) {
	t.Parallel()

	l := newTestLoader(t, &fakeIndex{}, 1)
	surface := &fakeSurface{}

	first := testPhotoRecord(1, 640, 480)
	first.Prepare()
	second := testPhotoRecord(2, 800, 600)
	second.Prepare()

	decodeStarted := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	l.loadPhoto = func(path string, srcWidth, srcHeight, boxWidth, boxHeight, orientation int) (image.Image, error) {
		once.Do(func() {
			close(decodeStarted)
			<-release
		})
		return image.NewRGBA(image.Rect(0, 0, boxWidth, boxHeight)), nil
	}

	firstDone := l.Submit(first, surface, 50, 50)
	<-decodeStarted

	// A newer record takes over the surface while the first decode runs.
	secondDone := l.Submit(second, surface, 50, 50)
	close(release)

	if result := waitResult(t, firstDone); result != ResultSuperseded {
		t.Fatalf("first result = %s, want superseded", result)
	}
	if result := waitResult(t, secondDone); result != ResultApplied {
		t.Fatalf("second result = %s, want applied", result)
	}
	if surface.setCount() != 1 {
		t.Errorf("SetImage called %d times, want exactly 1 (the newer task)", surface.setCount())
	}
}

func TestLoaderReconcilesStaleDimensions(t *testing.T) {
	t.Parallel()

	index := &fakeIndex{}
	refresher := &fakeRefresher{}
	l := newTestLoader(t, index, 1)
	l.SetRefresher(refresher)

	record := testPhotoRecord(9, 640, 480)
	record.Prepare()
	surface := &fakeSurface{}

	// The file on disk disagrees with the index row.
	l.probeDims = func(path string) (media.Dimensions, error) {
		return media.Dimensions{Width: 1024, Height: 768}, nil
	}
	l.loadPhoto = func(path string, srcWidth, srcHeight, boxWidth, boxHeight, orientation int) (image.Image, error) {
		t.Error("decode must not run when the dimension check fails")
		return nil, errors.New("unreachable")
	}

	result := waitResult(t, l.Submit(record, surface, 50, 50))

	if result != ResultNeedsRefresh {
		t.Fatalf("result = %s, want needs_refresh", result)
	}
	if surface.setCount() != 0 {
		t.Error("no bitmap should be produced on a stale-dimension detection")
	}
	if got := index.writeCount(); got != 1 {
		t.Fatalf("correction writes = %d, want exactly 1", got)
	}
	w := index.writes[0]
	if w.table != "photos" || w.id != 9 || w.width != 1024 || w.height != 768 {
		t.Errorf("correction wrote %+v, want photos/9 1024x768", w)
	}
	if refresher.requestCount() != 1 {
		t.Errorf("refresh requests = %d, want 1", refresher.requestCount())
	}
}

func TestLoaderReconciliationWriteFailureStillRefreshes(t *testing.T) {
	t.Parallel()

	index := &fakeIndex{err: errors.New("index locked")}
	refresher := &fakeRefresher{}
	l := newTestLoader(t, index, 1)
	l.SetRefresher(refresher)

	record := testPhotoRecord(3, 640, 480)
	record.Prepare()
	l.probeDims = func(path string) (media.Dimensions, error) {
		return media.Dimensions{Width: 100, Height: 100}, nil
	}

	result := waitResult(t, l.Submit(record, &fakeSurface{}, 50, 50))

	if result != ResultNeedsRefresh {
		t.Fatalf("result = %s, want needs_refresh", result)
	}
	if refresher.requestCount() != 1 {
		t.Errorf("refresh requests = %d, want 1 even when the write fails", refresher.requestCount())
	}
}

func TestLoaderMatchingProbeDecodesNormally(t *testing.T) {
	t.Parallel()

	index := &fakeIndex{}
	l := newTestLoader(t, index, 1)
	record := testPhotoRecord(1, 640, 480)
	record.Prepare()
	surface := &fakeSurface{}

	// Probe agrees with the index row.
	l.probeDims = func(path string) (media.Dimensions, error) {
		return media.Dimensions{Width: 640, Height: 480}, nil
	}

	if result := waitResult(t, l.Submit(record, surface, 50, 50)); result != ResultApplied {
		t.Fatalf("result = %s, want applied", result)
	}
	if index.writeCount() != 0 {
		t.Errorf("correction writes = %d, want 0 for matching dimensions", index.writeCount())
	}
}

func TestLoaderFailedDecodeKeepsPlaceholder(t *testing.T) {
	t.Parallel()

	l := newTestLoader(t, &fakeIndex{}, 1)
	record := testPhotoRecord(1, 640, 480)
	record.Prepare()
	surface := &fakeSurface{}

	l.loadPhoto = func(path string, srcWidth, srcHeight, boxWidth, boxHeight, orientation int) (image.Image, error) {
		return nil, errors.New("file vanished")
	}

	if result := waitResult(t, l.Submit(record, surface, 50, 50)); result != ResultFailed {
		t.Fatalf("result = %s, want failed", result)
	}
	if surface.setCount() != 0 {
		t.Error("a failed decode must not touch the surface")
	}
}

func TestLoaderVideoSkipsDimensionReprobe(t *testing.T) {
	t.Parallel()

	index := &fakeIndex{}
	l := newTestLoader(t, index, 1)
	record := testVideoRecord(5, 1920, 1080)
	record.Prepare()
	surface := &fakeSurface{}

	l.probeDims = func(path string) (media.Dimensions, error) {
		t.Error("video tasks must not run the image dimension probe")
		return media.Dimensions{}, nil
	}

	if result := waitResult(t, l.Submit(record, surface, 64, 64)); result != ResultApplied {
		t.Fatalf("result = %s, want applied", result)
	}
	if index.writeCount() != 0 {
		t.Errorf("correction writes = %d, want 0 for videos", index.writeCount())
	}

	// The extracted 640x480 frame must come back fitted to the box.
	img := surface.lastImage()
	if img == nil {
		t.Fatal("surface received no frame")
	}
	b := img.Bounds()
	if b.Dx() > 64 || b.Dy() > 64 {
		t.Errorf("frame is %dx%d, exceeds the 64x64 box", b.Dx(), b.Dy())
	}
}

func TestLoaderVideoCancelBeforeExtraction(t *testing.T) {
	t.Parallel()

	l := newTestLoader(t, &fakeIndex{}, 1)
	record := testVideoRecord(5, 1920, 1080)
	surface := &fakeSurface{}

	// Never prepared: the task is dropped at the first checkpoint.
	extractCalled := false
	l.extractFrame = func(path string) (image.Image, error) {
		extractCalled = true
		return image.NewRGBA(image.Rect(0, 0, 10, 10)), nil
	}

	if result := waitResult(t, l.Submit(record, surface, 50, 50)); result != ResultCancelled {
		t.Fatalf("result = %s, want cancelled", result)
	}
	if extractCalled {
		t.Error("frame extraction ran for an unused record")
	}
}

func TestLoaderForgetCancelsTask(t *testing.T) {
	t.Parallel()

	l := newTestLoader(t, &fakeIndex{}, 1)
	record := testPhotoRecord(1, 640, 480)
	record.Prepare()
	surface := &fakeSurface{}

	decodeStarted := make(chan struct{})
	release := make(chan struct{})
	l.loadPhoto = func(path string, srcWidth, srcHeight, boxWidth, boxHeight, orientation int) (image.Image, error) {
		close(decodeStarted)
		<-release
		return image.NewRGBA(image.Rect(0, 0, 10, 10)), nil
	}

	done := l.Submit(record, surface, 50, 50)
	<-decodeStarted
	l.Forget(surface)
	close(release)

	result := waitResult(t, done)
	if result != ResultSuperseded && result != ResultCancelled {
		t.Fatalf("result = %s, want superseded or cancelled", result)
	}
	if surface.setCount() != 0 {
		t.Error("a forgotten surface must not receive a bitmap")
	}
}

func TestLoaderStartIsIdempotent(t *testing.T) {
	t.Parallel()

	l := newTestLoader(t, &fakeIndex{}, 1)
	l.Start() // second call is a no-op

	record := testPhotoRecord(1, 640, 480)
	record.Prepare()
	if result := waitResult(t, l.Submit(record, &fakeSurface{}, 50, 50)); result != ResultApplied {
		t.Fatalf("result = %s, want applied", result)
	}
}
