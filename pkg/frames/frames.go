package frames

import (
	"sync"
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/bmharper/ringbuffer"
)

// Package frames holds the live preview feed of a recording session:
// a ring of recently decoded frames, and the sampler that extracts a
// single still for the detection pipeline.

// Frame is one decoded preview frame
type Frame struct {
	Image *cimg.Image
	PTS   time.Time
}

// Source provides the most recent frame of a live feed.
// Readers never mutate the feed; the owner of the feed (the recording
// session) is the only writer.
type Source interface {
	// Returns the latest frame, or ok=false if no frame has arrived yet
	LatestFrame() (Frame, bool)
}

// RingSource is a Source fed by a live connection. It keeps a short
// history of frames so that we can estimate the incoming frame rate.
type RingSource struct {
	lock sync.Mutex
	ring ringbuffer.RingP[Frame]
}

// historySize must be a power of 2 for RingP
const historySize = 16

func NewRingSource() *RingSource {
	return &RingSource{
		ring: ringbuffer.NewRingP[Frame](historySize),
	}
}

// Add a newly decoded frame. Called by the feed owner only.
func (s *RingSource) Add(img *cimg.Image, pts time.Time) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.ring.Add(Frame{Image: img, PTS: pts})
}

func (s *RingSource) LatestFrame() (Frame, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.ring.Len() == 0 {
		return Frame{}, false
	}
	return s.ring.Peek(s.ring.Len() - 1), true
}

// Estimate the rate at which frames are arriving, using the PTS intervals
// of the frames currently in the ring.
func (s *RingSource) FPS() float64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	intervals := []time.Duration{}
	for i := 1; i < s.ring.Len(); i++ {
		intervals = append(intervals, s.ring.Peek(i).PTS.Sub(s.ring.Peek(i-1).PTS))
	}
	return EstimateFPS(intervals)
}
