package frames

import (
	"errors"
	"fmt"

	"github.com/bmharper/cimg/v2"
)

// ErrNoFrame means the feed has no usable frame right now (nothing has
// arrived yet, or the latest frame has zero dimensions). Callers must
// treat this as "skip this tick", never as fatal.
var ErrNoFrame = errors.New("no frame available")

type SampleOptions struct {
	// If non-zero (0 < f <= 1), crop a square region of f * the shorter
	// dimension before returning. The crop is horizontally centered and
	// vertically biased one third of the slack down from the top, which
	// favors a face positioned slightly above center.
	CenterCropFraction float64
}

// Sample extracts a single still from the live feed.
// The returned frame's image is a copy when cropping is requested, and
// the source's own buffer otherwise; either way the caller may hold it
// past the next feed update.
func Sample(src Source, opt SampleOptions) (Frame, error) {
	frame, ok := src.LatestFrame()
	if !ok {
		return Frame{}, ErrNoFrame
	}
	img := frame.Image
	if img == nil || img.Width <= 0 || img.Height <= 0 {
		return Frame{}, fmt.Errorf("%w: frame has zero dimensions", ErrNoFrame)
	}
	if opt.CenterCropFraction <= 0 || opt.CenterCropFraction > 1 {
		if opt.CenterCropFraction > 1 {
			return Frame{}, fmt.Errorf("invalid CenterCropFraction %v", opt.CenterCropFraction)
		}
		return frame, nil
	}

	x, y, side := cropRegion(img.Width, img.Height, opt.CenterCropFraction)
	crop := cimg.NewImage(side, side, cimg.PixelFormatRGB)
	crop.CopyImageRect(img, x, y, x+side, y+side, 0, 0)
	return Frame{Image: crop, PTS: frame.PTS}, nil
}

// Compute the square crop region: side = fraction of the shorter dimension,
// horizontally centered, vertically one third of the slack down.
func cropRegion(width, height int, fraction float64) (x, y, side int) {
	shorter := width
	if height < shorter {
		shorter = height
	}
	side = int(float64(shorter) * fraction)
	if side < 1 {
		side = 1
	}
	x = (width - side) / 2
	y = (height - side) / 3
	return x, y, side
}
