package facenet

import (
	"fmt"

	"github.com/bmharper/cimg/v2"
)

// Preprocess converts an RGB image sample into the [1,48,48,1] tensor that
// our expression networks expect.
// Steps, in order:
//  1. Bilinear resize to 48x48.
//  2. Reduce to one channel by taking the unweighted mean of the color
//     channels (not luminance -- the networks were trained that way).
//  3. Normalize: subtract the per-image mean, divide by 255, add 0.5.
//     This recenters intensity around mid-gray, which this class of
//     network prefers over a plain 0..1 scale.
//
// All intermediate buffers are scoped to this call.
func Preprocess(img *cimg.Image) (*Tensor, error) {
	if img == nil || img.Width <= 0 || img.Height <= 0 {
		return nil, fmt.Errorf("Preprocess needs an image with non-zero dimensions")
	}
	resized := img
	if img.Width != InputWidth || img.Height != InputHeight {
		// Triangle is bilinear
		resized = cimg.ResizeNew(img, InputWidth, InputHeight, &cimg.ResizeParams{Filter: cimg.ResizeFilterTriangle})
	}

	t := NewTensor(InputHeight, InputWidth)
	nchan := resized.NChan()
	ncolor := nchan
	if ncolor > 3 {
		// Ignore alpha
		ncolor = 3
	}
	sum := float32(0)
	for y := 0; y < InputHeight; y++ {
		row := resized.Pixels[y*resized.Stride:]
		for x := 0; x < InputWidth; x++ {
			p := x * nchan
			acc := 0
			for c := 0; c < ncolor; c++ {
				acc += int(row[p+c])
			}
			gray := float32(acc) / float32(ncolor)
			t.Data[y*InputWidth+x] = gray
			sum += gray
		}
	}
	mean := sum / float32(InputWidth*InputHeight)
	for i := range t.Data {
		t.Data[i] = (t.Data[i]-mean)/255 + 0.5
	}
	return t, nil
}
