package detect

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/moodcam/moodcam/pkg/emotion"
	"github.com/moodcam/moodcam/pkg/facenet"
	"github.com/moodcam/moodcam/pkg/frames"
	"github.com/moodcam/moodcam/server/classifier"
)

// Loop drives Sample -> Preprocess -> Classify at a fixed cadence while a
// recording is active, and publishes results through a callback.
// At most one run is active per Loop: Start cancels any previous run
// before installing a new one, and the loop's lifetime is bounded by the
// owning recording session.

// Default cadence. Chosen to feel real-time without burning a core on
// inference; recording proceeds independently and is never blocked by a
// slow or skipped tick.
const DefaultInterval = 200 * time.Millisecond

// Returned by Start when the classifier handle is not Ready.
// Callers fall back to simulated analysis; they must not retry in a loop.
var ErrClassifierNotReady = errors.New("expression classifier is not ready")

type Options struct {
	Interval           time.Duration // Zero means DefaultInterval
	CenterCropFraction float64       // Passed through to the frame sampler

	// If set, ticks are skipped while it returns false (user toggled
	// their camera off). The recording keeps running regardless.
	VideoEnabled func() bool
}

type Loop struct {
	log    logs.Log
	handle *classifier.Handle

	// generation invalidates in-flight ticks: a tick only delivers its
	// result if the generation it started under is still current.
	generation atomic.Int64

	lock    sync.Mutex // Guards current
	current *runState
}

type runState struct {
	gen  int64
	quit chan struct{} // Closed by Stop to end the run
	done chan struct{} // Closed by the run goroutine on exit
}

func NewLoop(log logs.Log, handle *classifier.Handle) *Loop {
	return &Loop{
		log:    log,
		handle: handle,
	}
}

// Start begins ticking. If a run is already active, it is stopped first,
// so that exactly one run is active afterwards.
func (l *Loop) Start(src frames.Source, onResult func(emotion.DetectionResult), opt Options) error {
	if !l.handle.Ready() {
		return ErrClassifierNotReady
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	l.stopCurrent()

	run := &runState{
		gen:  l.generation.Add(1),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	l.current = run
	go l.run(run, src, onResult, opt)
	return nil
}

// Stop cancels the active run. Idempotent: stopping a stopped loop does
// nothing. Stop does not preempt a tick already executing; the generation
// check discards its result instead.
func (l *Loop) Stop() {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.stopCurrent()
}

func (l *Loop) stopCurrent() {
	if l.current == nil {
		return
	}
	l.generation.Add(1)
	close(l.current.quit)
	<-l.current.done
	l.current = nil
}

// IsRunning is true while a run is active
func (l *Loop) IsRunning() bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.current != nil
}

func (l *Loop) run(run *runState, src frames.Source, onResult func(emotion.DetectionResult), opt Options) {
	defer close(run.done)
	interval := opt.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	// Ticks execute inline in this goroutine, so they never overlap.
	// If a tick outlasts the interval, the ticker coalesces the backlog
	// into a single pending tick, which is exactly the "skip while one is
	// in flight" behavior we want.
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	lastErrAt := time.Time{}
	for {
		select {
		case <-run.quit:
			return
		case <-ticker.C:
			l.tick(run.gen, src, onResult, opt, &lastErrAt)
		}
	}
}

// One tick of the pipeline. Every failure path skips the tick; nothing a
// tick does may terminate the loop.
func (l *Loop) tick(gen int64, src frames.Source, onResult func(emotion.DetectionResult), opt Options, lastErrAt *time.Time) {
	if opt.VideoEnabled != nil && !opt.VideoEnabled() {
		return
	}
	frame, err := frames.Sample(src, frames.SampleOptions{CenterCropFraction: opt.CenterCropFraction})
	if err != nil {
		l.logTickError(lastErrAt, "Failed to sample frame: %v", err)
		return
	}
	tensor, err := facenet.Preprocess(frame.Image)
	if err != nil {
		l.logTickError(lastErrAt, "Failed to preprocess frame: %v", err)
		return
	}
	result := l.handle.Classify(tensor)
	if result == nil {
		return
	}
	result.FramePTS = frame.PTS
	// If Stop() won the race while we were classifying, the result is
	// stale and must not reach the UI.
	if l.generation.Load() != gen {
		return
	}
	onResult(*result)
}

// Per-tick failures repeat at tick cadence, so log at most every 15 seconds
func (l *Loop) logTickError(lastErrAt *time.Time, format string, args ...any) {
	now := time.Now()
	if now.Sub(*lastErrAt) > 15*time.Second {
		l.log.Warnf(format, args...)
		*lastErrAt = now
	}
}
