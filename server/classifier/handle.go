package classifier

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/moodcam/moodcam/pkg/emotion"
	"github.com/moodcam/moodcam/pkg/facenet"
)

// Handle owns the lifecycle of a loaded expression model.
// State machine: Unloaded -> Loading -> Ready | Failed.
// Ready and Failed are terminal for a given attempt. There is no automatic
// retry; a caller may invoke Load() again after a failure, which starts a
// brand-new attempt.
type State int32

const (
	StateUnloaded State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

type Handle struct {
	log   logs.Log
	state atomic.Int32

	// Guards model. The model itself is read-mostly: once Ready, Classify
	// only reads it.
	modelLock sync.Mutex
	model     facenet.Classifier

	// Unix nanoseconds of the last logged inference error. Atomic, because
	// every live session's detection loop shares this handle.
	lastClassifyErrAt atomic.Int64
}

func NewHandle(log logs.Log) *Handle {
	return &Handle{
		log: log,
	}
}

func (h *Handle) State() State {
	return State(h.state.Load())
}

func (h *Handle) Ready() bool {
	return h.State() == StateReady
}

// Load acquires the model artifact and brings the handle to Ready.
// Returns true iff the handle is Ready afterwards. Load never panics or
// returns an error; failure is communicated via the boolean and the
// Failed state, with diagnostics in the log.
// Load must not be called concurrently with itself; the Loading state
// check enforces this.
func (h *Handle) Load(opt LoadOptions) bool {
	if !h.state.CompareAndSwap(int32(StateUnloaded), int32(StateLoading)) &&
		!h.state.CompareAndSwap(int32(StateFailed), int32(StateLoading)) {
		h.log.Warnf("Classifier load skipped (state is %v)", h.State())
		return h.Ready()
	}

	model, err := loadModel(h.log, opt)
	if err != nil {
		h.log.Errorf("Failed to load expression model '%v': %v", opt.ModelName, err)
		h.state.Store(int32(StateFailed))
		return false
	}

	// Warm-up inference with a zero tensor, to pay any deferred
	// initialization cost here instead of on the first real tick.
	warm := facenet.NewTensor(facenet.InputHeight, facenet.InputWidth)
	if _, err := model.Classify(warm); err != nil {
		h.log.Errorf("Expression model '%v' failed warm-up inference: %v", opt.ModelName, err)
		model.Close()
		h.state.Store(int32(StateFailed))
		return false
	}

	h.modelLock.Lock()
	h.model = model
	h.modelLock.Unlock()
	h.state.Store(int32(StateReady))
	h.log.Infof("Expression model '%v' loaded (%v classes)", opt.ModelName, len(model.Config().Classes))
	return true
}

// Classify runs a forward pass and maps the model's native labels onto the
// canonical emotion schema. Returns nil if the handle is not Ready, or if
// the forward pass fails; a nil return means "skip this tick" and is never
// an error the caller must handle.
func (h *Handle) Classify(t *facenet.Tensor) (result *emotion.DetectionResult) {
	if !h.Ready() {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			h.logClassifyError("panic: %v", r)
			result = nil
		}
	}()

	h.modelLock.Lock()
	model := h.model
	h.modelLock.Unlock()
	if model == nil {
		return nil
	}

	preds, err := model.Classify(t)
	if err != nil {
		h.logClassifyError("%v", err)
		return nil
	}

	// Native labels that match no synonym are dropped, and their score
	// reaches no canonical key. If two native labels map to the same key,
	// the later one wins.
	v := emotion.NewVector()
	for _, p := range preds {
		if key, ok := emotion.MapLabel(p.Label); ok {
			v[key] = p.Score
		}
	}
	r := emotion.Result(v)
	return &r
}

// Inference failures recur at tick cadence when something is genuinely
// broken, so we log at most every 15 seconds.
func (h *Handle) logClassifyError(format string, args ...any) {
	now := time.Now()
	last := h.lastClassifyErrAt.Load()
	if now.Sub(time.Unix(0, last)) > 15*time.Second && h.lastClassifyErrAt.CompareAndSwap(last, now.UnixNano()) {
		h.log.Errorf("Error classifying frame: "+format, args...)
	}
}

func (h *Handle) Close() {
	h.modelLock.Lock()
	defer h.modelLock.Unlock()
	if h.model != nil {
		h.model.Close()
		h.model = nil
	}
	h.state.Store(int32(StateUnloaded))
}
