package gallery

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"media-gallery/internal/logging"
	"media-gallery/internal/media"
	"media-gallery/internal/metrics"

	"github.com/disintegration/imaging"
)

// Surface is an opaque drawable target for one thumbnail. Implementations
// decide what "set" means (an HTTP response, a UI tile, a test fake).
type Surface interface {
	// SetPlaceholder installs the interim image shown until a decode lands.
	SetPlaceholder(img image.Image)
	// SetImage installs the final decoded thumbnail.
	SetImage(img image.Image)
}

// Result is the terminal outcome of one thumbnail task.
type Result int

const (
	// ResultApplied means the decoded bitmap was handed to the surface.
	ResultApplied Result = iota
	// ResultCancelled means the task was cancelled, or the record was
	// recycled before the result could land. Not an error.
	ResultCancelled
	// ResultSuperseded means a newer task for the same surface took over
	// the right to write. Not an error.
	ResultSuperseded
	// ResultFailed means the file was missing or unreadable. The surface
	// keeps its placeholder; there is no retry.
	ResultFailed
	// ResultNeedsRefresh means the decode found the index disagreeing with
	// the file; a correction was written and a record refresh requested
	// instead of producing a bitmap.
	ResultNeedsRefresh
)

// String returns the result name.
func (r Result) String() string {
	switch r {
	case ResultApplied:
		return "applied"
	case ResultCancelled:
		return "cancelled"
	case ResultSuperseded:
		return "superseded"
	case ResultFailed:
		return "failed"
	case ResultNeedsRefresh:
		return "needs_refresh"
	default:
		return "unknown"
	}
}

// DimensionWriter is the slice of the content index the decode path needs:
// the best-effort dimension correction write.
type DimensionWriter interface {
	UpdateDimensions(ctx context.Context, table string, id int64, width, height int) error
}

// Refresher receives the loader's request to replace a stale record with a
// freshly built one. The owning collection implements it.
type Refresher interface {
	RequestRefresh(kind Kind, id int64)
}

type taskStatus int

const (
	statusDecoded taskStatus = iota
	statusCancelled
	statusFailed
	statusNeedsRefresh
)

type task struct {
	record    *Record
	surface   Surface
	boxWidth  int
	boxHeight int
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan Result
}

type taskResult struct {
	task   *task
	status taskStatus
	img    image.Image
	err    error
}

// Loader runs thumbnail decodes on a bounded worker pool and applies the
// results from a single dispatcher goroutine.
//
// Submissions are keyed by surface: registering a newer task for a surface
// supersedes (and cancels) the older one, so exactly one task may write to
// a surface and a late completion can never overwrite a newer bitmap.
// Results are additionally gated by the record's usage count at apply time.
type Loader struct {
	index     DimensionWriter
	refresher Refresher

	tasks   chan *task
	results chan *taskResult

	mu      sync.Mutex
	current map[Surface]*task

	workers  int
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	started  atomic.Bool

	// decode seams; replaced by tests
	probeDims    func(path string) (media.Dimensions, error)
	loadPhoto    func(path string, srcWidth, srcHeight, boxWidth, boxHeight, orientation int) (image.Image, error)
	extractFrame func(path string) (image.Image, error)
}

// NewLoader creates a Loader writing corrections through index, with the
// given decode worker count.
func NewLoader(index DimensionWriter, workerCount int) *Loader {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Loader{
		index:        index,
		tasks:        make(chan *task, workerCount*32),
		results:      make(chan *taskResult, workerCount*32),
		current:      make(map[Surface]*task),
		workers:      workerCount,
		stopChan:     make(chan struct{}),
		probeDims:    media.ProbeDimensions,
		loadPhoto:    media.LoadPhotoThumbnail,
		extractFrame: media.ExtractVideoFrame,
	}
}

// SetRefresher installs the collection that receives refresh requests.
func (l *Loader) SetRefresher(r Refresher) {
	l.refresher = r
}

// Start spins up the decode workers and the result dispatcher.
func (l *Loader) Start() {
	if !l.started.CompareAndSwap(false, true) {
		return
	}
	for i := 0; i < l.workers; i++ {
		l.wg.Add(1)
		go l.workerLoop()
	}
	l.wg.Add(1)
	go l.dispatchLoop()
	logging.Info("Thumbnail loader started with %d decode workers", l.workers)
}

// Stop cancels in-flight tasks and waits for the workers to drain.
func (l *Loader) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopChan)
		l.mu.Lock()
		for _, t := range l.current {
			t.cancel()
		}
		l.mu.Unlock()
	})
	l.wg.Wait()
}

// Submit schedules a thumbnail decode of record into a boxWidth x boxHeight
// box for surface. It never blocks on decoding; the returned channel yields
// the task's terminal Result exactly once.
//
// Submitting again for the same surface supersedes the previous task:
// its context is cancelled and its result, should it still complete, is
// discarded rather than applied.
func (l *Loader) Submit(record *Record, surface Surface, boxWidth, boxHeight int) <-chan Result {
	t := &task{
		record:    record,
		surface:   surface,
		boxWidth:  boxWidth,
		boxHeight: boxHeight,
		done:      make(chan Result, 1),
	}
	t.ctx, t.cancel = context.WithCancel(context.Background())

	l.mu.Lock()
	if prev, ok := l.current[surface]; ok {
		prev.cancel()
	}
	l.current[surface] = t
	l.mu.Unlock()

	select {
	case l.tasks <- t:
	default:
		// Queue full; hand off without blocking the issuing goroutine.
		go func() {
			select {
			case l.tasks <- t:
			case <-l.stopChan:
				l.finish(t, ResultCancelled)
			}
		}()
	}

	return t.done
}

// Forget drops the surface's task registration, cancelling any in-flight
// task. Call when a surface is destroyed rather than reused.
func (l *Loader) Forget(surface Surface) {
	l.mu.Lock()
	if t, ok := l.current[surface]; ok {
		t.cancel()
		delete(l.current, surface)
	}
	l.mu.Unlock()
}

func (l *Loader) workerLoop() {
	defer l.wg.Done()
	for {
		select {
		case <-l.stopChan:
			return
		case t := <-l.tasks:
			res := l.runTask(t)
			select {
			case l.results <- res:
			case <-l.stopChan:
				l.finish(t, ResultCancelled)
				return
			}
		}
	}
}

func (l *Loader) dispatchLoop() {
	defer l.wg.Done()
	for {
		select {
		case <-l.stopChan:
			return
		case res := <-l.results:
			l.apply(res)
		}
	}
}

// runTask performs the blocking part of one decode on a worker goroutine.
// Cancellation is advisory: the context and the record's usage gate are
// polled at the defined checkpoints, never mid-decode.
func (l *Loader) runTask(t *task) *taskResult {
	r := t.record

	metrics.DecodeTasksInFlight.Inc()
	defer metrics.DecodeTasksInFlight.Dec()
	start := time.Now()
	defer func() {
		metrics.DecodeDuration.WithLabelValues(r.Kind().String()).Observe(time.Since(start).Seconds())
	}()

	// Checkpoint: nothing has touched the filesystem yet.
	if t.ctx.Err() != nil || !r.InUse() {
		return &taskResult{task: t, status: statusCancelled}
	}

	if r.reprobeOnDecode() {
		// Double-check the real image size on every attempt. The probe reads
		// only the header, a small fraction of full decode cost, and catches
		// index rows that were written with wrong dimensions.
		if dims, err := l.probeDims(r.Path()); err == nil &&
			dims.Width > 0 && dims.Height > 0 &&
			(dims.Width != r.Width() || dims.Height != r.Height()) {
			l.reconcile(t.ctx, r, dims)
			return &taskResult{task: t, status: statusNeedsRefresh}
		}
	}

	switch r.Kind() {
	case KindVideo:
		return l.runVideoTask(t)
	default:
		return l.runPhotoTask(t)
	}
}

func (l *Loader) runPhotoTask(t *task) *taskResult {
	r := t.record
	img, err := l.loadPhoto(r.Path(), r.Width(), r.Height(), t.boxWidth, t.boxHeight, r.Orientation())
	if err != nil {
		logging.Debug("Photo decode failed for %s: %v", r.Path(), err)
		return &taskResult{task: t, status: statusFailed, err: err}
	}
	return &taskResult{task: t, status: statusDecoded, img: img}
}

func (l *Loader) runVideoTask(t *task) *taskResult {
	r := t.record

	// Frame extraction is slow; re-check around it.
	if t.ctx.Err() != nil || !r.InUse() {
		return &taskResult{task: t, status: statusCancelled}
	}

	frame, err := l.extractFrame(r.Path())
	if err != nil {
		logging.Debug("Video frame extraction failed for %s: %v", r.Path(), err)
		return &taskResult{task: t, status: statusFailed, err: err}
	}

	if t.ctx.Err() != nil || !r.InUse() {
		return &taskResult{task: t, status: statusCancelled}
	}

	b := frame.Bounds()
	target := media.ThumbnailSize(b.Dx(), b.Dy(), t.boxWidth, t.boxHeight,
		media.MaxRenderDimension, media.MaxDecodePixels)
	if target.Width < b.Dx() || target.Height < b.Dy() {
		frame = imaging.Resize(frame, target.Width, target.Height, imaging.Lanczos)
	}

	return &taskResult{task: t, status: statusDecoded, img: frame}
}

// reconcile writes the corrected dimensions back to the index. Best effort:
// a failed write is logged and retried opportunistically by whichever
// decode attempt next detects the mismatch. At most one write per attempt.
func (l *Loader) reconcile(ctx context.Context, r *Record, dims media.Dimensions) {
	err := l.index.UpdateDimensions(ctx, r.Kind().Table(), r.ContentID(), dims.Width, dims.Height)
	if err != nil {
		metrics.ReconciliationWritesTotal.WithLabelValues("error").Inc()
		logging.Warn("Failed to write corrected size %dx%d for %s/%d: %v",
			dims.Width, dims.Height, r.Kind().Table(), r.ContentID(), err)
		return
	}
	metrics.ReconciliationWritesTotal.WithLabelValues("success").Inc()
	logging.Warn("Index row %s/%d has been updated with the correct size %dx%d",
		r.Kind().Table(), r.ContentID(), dims.Width, dims.Height)
}

// apply delivers one task result on the dispatcher goroutine.
func (l *Loader) apply(res *taskResult) {
	t := res.task

	l.mu.Lock()
	isCurrent := l.current[t.surface] == t
	l.mu.Unlock()

	switch res.status {
	case statusCancelled:
		l.finish(t, ResultCancelled)

	case statusFailed:
		logging.Error("Failed decoding bitmap for file: %s", t.record.Path())
		l.finish(t, ResultFailed)

	case statusNeedsRefresh:
		// The refresh request goes out regardless of visibility; the index
		// row is wrong whether or not anyone is looking at the item.
		if l.refresher != nil {
			metrics.RecordRefreshesTotal.Inc()
			l.refresher.RequestRefresh(t.record.Kind(), t.record.ContentID())
		}
		l.finish(t, ResultNeedsRefresh)

	case statusDecoded:
		if !isCurrent {
			l.finish(t, ResultSuperseded)
			return
		}
		// The sole gate against a stale bitmap landing on a reused surface.
		if !t.record.InUse() {
			l.finish(t, ResultCancelled)
			return
		}
		t.surface.SetImage(res.img)
		b := res.img.Bounds()
		logging.Debug("Created bitmap: %d x %d for %s", b.Dx(), b.Dy(), t.record.Path())
		l.finish(t, ResultApplied)
	}
}

func (l *Loader) finish(t *task, outcome Result) {
	metrics.DecodeTasksTotal.WithLabelValues(t.record.Kind().String(), outcome.String()).Inc()
	t.cancel()
	select {
	case t.done <- outcome:
	default:
	}
}
