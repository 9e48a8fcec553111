package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/bmharper/ringbuffer"
	"github.com/cyclopcam/logs"
	"github.com/moodcam/moodcam/pkg/emotion"
	"github.com/moodcam/moodcam/pkg/frames"
	"github.com/moodcam/moodcam/server/classifier"
	"github.com/moodcam/moodcam/server/detect"
)

// Session is one live recording connection. It owns the preview frame
// feed, the detection loop bound to the recording interval, and the
// running emotion tally for the current recording. The media itself is
// captured and encoded client-side; the session only ever reads preview
// frames, it never starts or stops the client's media stream.

// Number of recent results kept for smoothing. Power of 2 for the ring.
const resultHistorySize = 8

type Session struct {
	ID     int64
	log    logs.Log
	handle *classifier.Handle
	source *frames.RingSource
	loop   *detect.Loop

	videoEnabled atomic.Bool
	recording    atomic.Bool

	onResult func(emotion.DetectionResult)
	onNotice func(string)

	// Sent at most once per session, when recording starts with a failed
	// or unloaded model
	fallbackNotice sync.Once

	// Simulated-analysis run, active only when the model is unavailable
	simLock sync.Mutex
	simQuit chan struct{}
	simDone chan struct{}

	lock           sync.Mutex // Guards everything below
	startedAt      time.Time
	history        ringbuffer.RingP[emotion.DetectionResult]
	emotionCounts  map[string]int // TopEmotion occurrences in the current recording
	lastResult     *emotion.DetectionResult
}

// onResult receives every detection result of this session (from the real
// loop or the simulated fallback). onNotice receives rare, user-facing
// one-liners. Both may be nil.
func NewSession(id int64, log logs.Log, handle *classifier.Handle, onResult func(emotion.DetectionResult), onNotice func(string)) *Session {
	s := &Session{
		ID:       id,
		log:      log,
		handle:   handle,
		source:   frames.NewRingSource(),
		onResult: onResult,
		onNotice: onNotice,
		history:  ringbuffer.NewRingP[emotion.DetectionResult](resultHistorySize),
	}
	s.loop = detect.NewLoop(log, handle)
	s.videoEnabled.Store(true)
	return s
}

// AddFrame feeds one decoded preview frame into the session
func (s *Session) AddFrame(img *cimg.Image, pts time.Time) {
	s.source.Add(img, pts)
}

// SetVideoEnabled reflects the user's camera toggle. While disabled,
// detection ticks are skipped but the recording keeps running.
func (s *Session) SetVideoEnabled(enabled bool) {
	s.videoEnabled.Store(enabled)
}

func (s *Session) IsRecording() bool {
	return s.recording.Load()
}

// StartRecording begins the detection interval for a new recording.
// If the classifier is Ready, the real loop runs; otherwise we fall back
// to simulated analysis, notify the client once, and never let the broken
// model interfere with the recording itself.
func (s *Session) StartRecording(interval time.Duration, centerCropFraction float64) {
	s.lock.Lock()
	s.startedAt = time.Now()
	s.emotionCounts = map[string]int{}
	s.lock.Unlock()
	s.recording.Store(true)

	err := s.loop.Start(s.source, s.publish, detect.Options{
		Interval:           interval,
		CenterCropFraction: centerCropFraction,
		VideoEnabled:       s.videoEnabled.Load,
	})
	if err == nil {
		return
	}
	s.log.Infof("Session %v starting simulated analysis (%v)", s.ID, err)
	s.fallbackNotice.Do(func() {
		if s.onNotice != nil {
			s.onNotice("Emotion analysis is unavailable, showing simulated values")
		}
	})
	s.startSimulated(interval)
}

// StopRecording ends the detection interval. Idempotent.
func (s *Session) StopRecording() {
	s.recording.Store(false)
	s.loop.Stop()
	s.stopSimulated()
}

// Close tears the session down. Safe to call on abnormal disconnects,
// and after StopRecording.
func (s *Session) Close() {
	s.StopRecording()
}

// publish is the single funnel for detection results, real or simulated
func (s *Session) publish(r emotion.DetectionResult) {
	s.lock.Lock()
	s.history.Add(r)
	s.lastResult = &r
	if s.recording.Load() {
		s.emotionCounts[r.TopEmotion]++
	}
	s.lock.Unlock()
	if s.onResult != nil {
		s.onResult(r)
	}
}

// Smoothed averages the recent result history into one vector, so a
// single noisy tick doesn't make the overlay flicker.
func (s *Session) Smoothed() emotion.Vector {
	s.lock.Lock()
	defer s.lock.Unlock()
	v := emotion.NewVector()
	n := s.history.Len()
	if n == 0 {
		return v
	}
	for i := 0; i < n; i++ {
		r := s.history.Peek(i)
		for _, k := range emotion.Keys {
			v[k] += r.Vector[k]
		}
	}
	for _, k := range emotion.Keys {
		v[k] /= float32(n)
	}
	return v
}

// Dominant returns the most frequent top emotion of the current (or most
// recent) recording, and the number of results behind it.
func (s *Session) Dominant() (string, int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	best := ""
	bestCount := 0
	total := 0
	// Canonical order makes ties deterministic
	for _, k := range emotion.Keys {
		c := s.emotionCounts[k]
		total += c
		if c > bestCount {
			best = k
			bestCount = c
		}
	}
	return best, total
}

// LastResult returns the most recent detection result, or nil
func (s *Session) LastResult() *emotion.DetectionResult {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.lastResult
}

// LatestFrame returns the most recent preview frame of the feed
func (s *Session) LatestFrame() (frames.Frame, bool) {
	return s.source.LatestFrame()
}

// FPS estimates the preview feed's frame rate
func (s *Session) FPS() float64 {
	return s.source.FPS()
}

// StartedAt is the start time of the current recording
func (s *Session) StartedAt() time.Time {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.startedAt
}

// Simulated analysis loop. Same stop discipline as the real loop: a quit
// channel ends it, and stopSimulated is idempotent.
func (s *Session) startSimulated(interval time.Duration) {
	if interval <= 0 {
		interval = detect.DefaultInterval
	}
	s.simLock.Lock()
	defer s.simLock.Unlock()
	s.stopSimulatedNoLock()
	quit := make(chan struct{})
	done := make(chan struct{})
	s.simQuit = quit
	s.simDone = done
	sim := classifier.NewSimulated(s.ID)
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-quit:
				return
			case <-ticker.C:
				if !s.videoEnabled.Load() {
					continue
				}
				// recording flips to false before we're asked to quit, so a
				// tick racing with StopRecording doesn't reach the client
				if !s.recording.Load() {
					continue
				}
				r := sim.Next()
				r.FramePTS = time.Now()
				s.publish(r)
			}
		}
	}()
}

func (s *Session) stopSimulated() {
	s.simLock.Lock()
	defer s.simLock.Unlock()
	s.stopSimulatedNoLock()
}

func (s *Session) stopSimulatedNoLock() {
	if s.simQuit == nil {
		return
	}
	close(s.simQuit)
	<-s.simDone
	s.simQuit = nil
	s.simDone = nil
}
