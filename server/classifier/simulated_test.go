package classifier

import (
	"testing"

	"github.com/moodcam/moodcam/pkg/emotion"
	"github.com/stretchr/testify/require"
)

func TestSimulatedDeterministic(t *testing.T) {
	a := NewSimulated(42)
	b := NewSimulated(42)
	for i := 0; i < 20; i++ {
		ra := a.Next()
		rb := b.Next()
		require.Equal(t, ra, rb)
	}
}

func TestSimulatedShape(t *testing.T) {
	s := NewSimulated(1)
	for i := 0; i < 100; i++ {
		r := s.Next()
		require.Contains(t, emotion.Keys, r.TopEmotion)
		require.Len(t, r.Vector, 7)
		for _, k := range emotion.Keys {
			require.GreaterOrEqual(t, r.Vector[k], float32(0))
			require.LessOrEqual(t, r.Vector[k], float32(1))
		}
	}
}
