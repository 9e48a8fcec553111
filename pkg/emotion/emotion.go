package emotion

import "time"

// Package emotion defines the canonical 7-way emotion schema that the UI
// always displays, regardless of which classifier backend produced the scores.

const (
	Angry     = "angry"
	Disgust   = "disgust"
	Fear      = "fear"
	Happy     = "happy"
	Sad       = "sad"
	Surprised = "surprised"
	Neutral   = "neutral"
)

// Canonical keys, in canonical order. Ties in Result() are broken by
// first occurrence in this order.
var Keys = []string{
	Angry,
	Disgust,
	Fear,
	Happy,
	Sad,
	Surprised,
	Neutral,
}

// Vector maps each of the 7 canonical keys to a confidence in [0,1].
// All 7 keys are always present. The scores are not required to sum to 1,
// because unmatched native labels are dropped.
type Vector map[string]float32

// Create a Vector with all canonical keys present, and all scores zero
func NewVector() Vector {
	v := make(Vector, len(Keys))
	for _, k := range Keys {
		v[k] = 0
	}
	return v
}

// Clone returns a copy of v, guaranteed to carry all canonical keys
func (v Vector) Clone() Vector {
	c := NewVector()
	for _, k := range Keys {
		c[k] = v[k]
	}
	return c
}

// DetectionResult is one classification of a frame.
// SYNC-DETECTION-RESULT
type DetectionResult struct {
	TopEmotion string    `json:"topEmotion"` // One of the canonical keys
	Confidence float32   `json:"confidence"` // Score of TopEmotion
	Vector     Vector    `json:"vector"`     // All 7 canonical scores
	FramePTS   time.Time `json:"framePTS"`   // Presentation time of the frame that was classified
}

// Derive a DetectionResult from a vector.
// TopEmotion is the canonical key with the maximum score. If two keys have
// exactly equal scores, the earlier key in canonical order wins.
func Result(v Vector) DetectionResult {
	top := Keys[0]
	best := v[top]
	for _, k := range Keys[1:] {
		if v[k] > best {
			top = k
			best = v[k]
		}
	}
	return DetectionResult{
		TopEmotion: top,
		Confidence: best,
		Vector:     v,
	}
}
