package emotion

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewVector(t *testing.T) {
	v := NewVector()
	require.Len(t, v, 7)
	for _, k := range Keys {
		score, ok := v[k]
		require.True(t, ok)
		require.Equal(t, float32(0), score)
	}
}

func TestResult(t *testing.T) {
	v := NewVector()
	v[Happy] = 0.9
	v[Neutral] = 0.05
	r := Result(v)
	require.Equal(t, Happy, r.TopEmotion)
	require.Equal(t, float32(0.9), r.Confidence)
	require.Len(t, r.Vector, 7)
}

func TestResultTieBreak(t *testing.T) {
	// fear comes before sad in canonical order, so fear must win an exact tie
	v := NewVector()
	v[Fear] = 0.5
	v[Sad] = 0.5
	r := Result(v)
	require.Equal(t, Fear, r.TopEmotion)

	// All-zero vector resolves to the first canonical key
	r = Result(NewVector())
	require.Equal(t, Angry, r.TopEmotion)
	require.Equal(t, float32(0), r.Confidence)
}

func TestClone(t *testing.T) {
	v := NewVector()
	v[Surprised] = 0.7
	c := v.Clone()
	c[Surprised] = 0.1
	require.Equal(t, float32(0.7), v[Surprised])
	require.Len(t, c, 7)
}
