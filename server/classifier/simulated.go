package classifier

import (
	"math/rand"

	"github.com/moodcam/moodcam/pkg/emotion"
)

// Simulated produces plausible emotion vectors when the real model failed
// to load. The values are pseudo-random with a fixed bias toward happy and
// neutral, and deterministic for a given seed, so the fallback is testable
// and the UI keeps moving instead of freezing on a broken model.
type Simulated struct {
	rnd *rand.Rand
}

// Bias each canonical key receives before jitter is applied
var simulatedBias = emotion.Vector{
	emotion.Angry:     0.05,
	emotion.Disgust:   0.03,
	emotion.Fear:      0.04,
	emotion.Happy:     0.45,
	emotion.Sad:       0.08,
	emotion.Surprised: 0.10,
	emotion.Neutral:   0.35,
}

func NewSimulated(seed int64) *Simulated {
	return &Simulated{
		rnd: rand.New(rand.NewSource(seed)),
	}
}

// Next returns the next simulated result
func (s *Simulated) Next() emotion.DetectionResult {
	v := emotion.NewVector()
	for _, k := range emotion.Keys {
		score := simulatedBias[k] + float32(s.rnd.Float64()-0.5)*0.2
		if score < 0 {
			score = 0
		} else if score > 1 {
			score = 1
		}
		v[k] = score
	}
	return emotion.Result(v)
}
