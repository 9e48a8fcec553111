package frames

import (
	"math"
	"slices"
	"time"
)

// Given a set of consecutive frame intervals, estimate the average frames
// per second of the feed. Browser preview feeds are irregular (tab
// throttling, busy main thread), so we use the median interval rather
// than the mean.
func EstimateFPS(frameIntervals []time.Duration) float64 {
	if len(frameIntervals) == 0 {
		return 5
	}
	sorted := make([]time.Duration, len(frameIntervals))
	copy(sorted, frameIntervals)
	slices.Sort(sorted)
	mid := sorted[len(sorted)/2]
	if mid == 0 {
		return 5
	}
	fps := float64(time.Second) / float64(mid)
	if fps >= 0.9 {
		return math.Round(fps)
	}
	// Below 1 FPS, round seconds-per-frame instead, so that a throttled
	// feed sending every 2 or 4 seconds reports a stable number
	secondsPerFrame := 1.0 / fps
	return 1 / math.Round(secondsPerFrame)
}
