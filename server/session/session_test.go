package session

import (
	"sync"
	"testing"
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/logs"
	"github.com/moodcam/moodcam/pkg/emotion"
	"github.com/moodcam/moodcam/server/classifier"
	"github.com/stretchr/testify/require"
)

type collector struct {
	lock    sync.Mutex
	results []emotion.DetectionResult
	notices []string
}

func (c *collector) onResult(r emotion.DetectionResult) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.results = append(c.results, r)
}

func (c *collector) onNotice(n string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.notices = append(c.notices, n)
}

func (c *collector) numResults() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.results)
}

func (c *collector) numNotices() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.notices)
}

func waitFor(t *testing.T, timeout time.Duration, f func() bool) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if f() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Fail(t, "condition not reached within "+timeout.String())
}

// With an unloaded classifier, recording must still work, producing
// simulated values without ever touching the model, and the client gets
// exactly one notice regardless of how many recordings it makes.
func TestSessionFallback(t *testing.T) {
	handle := classifier.NewHandle(logs.NewTestingLog(t))
	c := &collector{}
	s := NewSession(7, logs.NewTestingLog(t), handle, c.onResult, c.onNotice)
	defer s.Close()

	s.StartRecording(10*time.Millisecond, 0)
	require.True(t, s.IsRecording())
	waitFor(t, 2*time.Second, func() bool { return c.numResults() >= 3 })
	require.Equal(t, 1, c.numNotices())

	s.StopRecording()
	require.False(t, s.IsRecording())
	n := c.numResults()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, n, c.numResults())

	// Second recording: more simulated values, but no second notice
	s.StartRecording(10*time.Millisecond, 0)
	waitFor(t, 2*time.Second, func() bool { return c.numResults() > n })
	s.StopRecording()
	require.Equal(t, 1, c.numNotices())
}

func TestSessionStopIdempotent(t *testing.T) {
	handle := classifier.NewHandle(logs.NewTestingLog(t))
	s := NewSession(1, logs.NewTestingLog(t), handle, nil, nil)
	s.StopRecording()
	s.StartRecording(10*time.Millisecond, 0)
	s.StopRecording()
	s.StopRecording()
	s.Close()
	s.Close()
}

func TestSessionDominant(t *testing.T) {
	handle := classifier.NewHandle(logs.NewTestingLog(t))
	s := NewSession(1, logs.NewTestingLog(t), handle, nil, nil)
	defer s.Close()

	s.StartRecording(time.Hour, 0)
	// Recording is active, so published results are tallied
	happy := emotion.NewVector()
	happy[emotion.Happy] = 0.9
	sad := emotion.NewVector()
	sad[emotion.Sad] = 0.8
	s.publish(emotion.Result(happy))
	s.publish(emotion.Result(happy))
	s.publish(emotion.Result(sad))

	dominant, total := s.Dominant()
	require.Equal(t, emotion.Happy, dominant)
	require.Equal(t, 3, total)
	s.StopRecording()
}

func TestSessionSmoothed(t *testing.T) {
	handle := classifier.NewHandle(logs.NewTestingLog(t))
	s := NewSession(1, logs.NewTestingLog(t), handle, nil, nil)
	defer s.Close()

	// Empty history: all zeros, but all keys present
	v := s.Smoothed()
	require.Len(t, v, 7)
	require.Equal(t, float32(0), v[emotion.Happy])

	a := emotion.NewVector()
	a[emotion.Happy] = 1.0
	b := emotion.NewVector()
	b[emotion.Happy] = 0.5
	s.publish(emotion.Result(a))
	s.publish(emotion.Result(b))

	v = s.Smoothed()
	require.InDelta(t, 0.75, v[emotion.Happy], 1e-5)
	require.NotNil(t, s.LastResult())
}

func TestSessionVideoToggle(t *testing.T) {
	handle := classifier.NewHandle(logs.NewTestingLog(t))
	c := &collector{}
	s := NewSession(2, logs.NewTestingLog(t), handle, c.onResult, c.onNotice)
	defer s.Close()

	s.SetVideoEnabled(false)
	s.StartRecording(10*time.Millisecond, 0)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 0, c.numResults())

	s.SetVideoEnabled(true)
	waitFor(t, 2*time.Second, func() bool { return c.numResults() >= 1 })
	s.StopRecording()
}

func TestSessionFrames(t *testing.T) {
	handle := classifier.NewHandle(logs.NewTestingLog(t))
	s := NewSession(3, logs.NewTestingLog(t), handle, nil, nil)
	defer s.Close()

	_, ok := s.LatestFrame()
	require.False(t, ok)

	img := cimg.NewImage(320, 240, cimg.PixelFormatRGB)
	s.AddFrame(img, time.Now())
	frame, ok := s.LatestFrame()
	require.True(t, ok)
	require.Equal(t, img, frame.Image)
}
