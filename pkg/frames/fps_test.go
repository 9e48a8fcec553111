package frames

import (
	"testing"
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/stretchr/testify/require"
)

func TestEstimateFPS(t *testing.T) {
	intervals := []time.Duration{
		66 * time.Millisecond,
		67 * time.Millisecond,
		66 * time.Millisecond,
	}
	require.Equal(t, 15.0, EstimateFPS(intervals))

	intervals = []time.Duration{
		100 * time.Millisecond,
		101 * time.Millisecond,
		99 * time.Millisecond,
		101 * time.Millisecond,
	}
	require.Equal(t, 10.0, EstimateFPS(intervals))

	// A throttled background tab sending every 2 seconds
	intervals = []time.Duration{
		2000 * time.Millisecond,
		2001 * time.Millisecond,
		1999 * time.Millisecond,
	}
	require.Equal(t, 0.5, EstimateFPS(intervals))

	// No data yet
	require.Equal(t, 5.0, EstimateFPS(nil))
}

func TestRingSourceFPS(t *testing.T) {
	src := NewRingSource()
	base := time.Now()
	img := cimg.NewImage(160, 120, cimg.PixelFormatRGB)
	for i := 0; i < 10; i++ {
		src.Add(img, base.Add(time.Duration(i)*100*time.Millisecond))
	}
	require.Equal(t, 10.0, src.FPS())
}
