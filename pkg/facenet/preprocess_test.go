package facenet

import (
	"testing"

	"github.com/bmharper/cimg/v2"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/require"
)

func TestPreprocessShape(t *testing.T) {
	img := cimg.NewImage(640, 480, cimg.PixelFormatRGB)
	for i := range img.Pixels {
		img.Pixels[i] = byte(i * 7)
	}
	tensor, err := Preprocess(img)
	require.NoError(t, err)
	require.Equal(t, [4]int{1, 48, 48, 1}, tensor.Shape())
	require.Len(t, tensor.Data, 48*48)
	for _, v := range tensor.Data {
		require.False(t, math32.IsNaN(v))
		require.False(t, math32.IsInf(v, 0))
	}
}

func TestPreprocessConstantImage(t *testing.T) {
	// A constant image has zero deviation from its mean, so every value
	// normalizes to exactly mid-gray.
	img := cimg.NewImage(48, 48, cimg.PixelFormatRGB)
	for i := range img.Pixels {
		img.Pixels[i] = 173
	}
	tensor, err := Preprocess(img)
	require.NoError(t, err)
	for _, v := range tensor.Data {
		require.InDelta(t, 0.5, v, 1e-5)
	}
}

func TestPreprocessChannelMean(t *testing.T) {
	// Pure red and pure blue have the same channel mean, so they must
	// produce identical grayscale values (unweighted mean, not luminance).
	red := cimg.NewImage(48, 48, cimg.PixelFormatRGB)
	blue := cimg.NewImage(48, 48, cimg.PixelFormatRGB)
	for i := 0; i < len(red.Pixels); i += 3 {
		red.Pixels[i] = 255
		blue.Pixels[i+2] = 255
	}
	tr, err := Preprocess(red)
	require.NoError(t, err)
	tb, err := Preprocess(blue)
	require.NoError(t, err)
	require.Equal(t, tr.Data, tb.Data)
}

func TestPreprocessBadInput(t *testing.T) {
	_, err := Preprocess(nil)
	require.Error(t, err)
	_, err = Preprocess(&cimg.Image{})
	require.Error(t, err)
}
