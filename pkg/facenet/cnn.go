package facenet

import (
	"fmt"

	"github.com/chewxy/math32"
)

// cnnClassifier is a pure-Go forward pass for our small grayscale
// expression networks: a stack of 3x3 same-padding convolutions, each
// followed by ReLU and 2x2 max-pool, then a single dense layer with
// softmax. Small enough (tens of thousands of parameters) that plain Go
// is fast enough at our detection cadence, and we avoid a cgo dependency
// for the one model size we ship.
type cnnClassifier struct {
	config  *ModelConfig
	weights *Weights
}

// Create a classifier from a parsed config and a weight file
func NewCNNClassifier(config *ModelConfig, weightsFile string) (Classifier, error) {
	if config.Width != InputWidth || config.Height != InputHeight {
		return nil, fmt.Errorf("Model input size %vx%v is not supported (expected %vx%v)", config.Width, config.Height, InputWidth, InputHeight)
	}
	if len(config.Classes) == 0 {
		return nil, fmt.Errorf("Model config has no classes")
	}
	weights, err := ReadWeights(weightsFile)
	if err != nil {
		return nil, err
	}
	if err := validateWeights(config, weights); err != nil {
		return nil, err
	}
	return &cnnClassifier{
		config:  config,
		weights: weights,
	}, nil
}

func validateWeights(config *ModelConfig, w *Weights) error {
	width, height := InputWidth, InputHeight
	channels := 1
	for i, c := range w.Convs {
		if c.In != channels {
			return fmt.Errorf("Conv layer %v input channels %v, expected %v", i, c.In, channels)
		}
		channels = c.Out
		width /= 2
		height /= 2
		if width == 0 || height == 0 {
			return fmt.Errorf("Too many pooling stages for a %vx%v input", InputWidth, InputHeight)
		}
	}
	flat := width * height * channels
	if w.Dense.In != flat {
		return fmt.Errorf("Dense layer input %v does not match feature map size %v", w.Dense.In, flat)
	}
	if w.Dense.Out != len(config.Classes) {
		return fmt.Errorf("Dense layer output %v does not match class count %v", w.Dense.Out, len(config.Classes))
	}
	return nil
}

func (c *cnnClassifier) Close() {
	// Pure Go, nothing to release. Kept for symmetry with accelerated backends.
}

func (c *cnnClassifier) Config() *ModelConfig {
	return c.config
}

func (c *cnnClassifier) Classify(t *Tensor) ([]Prediction, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}

	// Feature maps are stored as [channel][y*width+x]
	maps := [][]float32{t.Data}
	width, height := t.Width, t.Height

	for _, layer := range c.weights.Convs {
		maps = convolve(maps, width, height, &layer)
		maps, width, height = maxPool2(maps, width, height)
	}

	flat := flatten(maps, width, height)
	logits := make([]float32, c.weights.Dense.Out)
	for o := 0; o < c.weights.Dense.Out; o++ {
		acc := c.weights.Dense.Bias[o]
		row := c.weights.Dense.Weight[o*c.weights.Dense.In : (o+1)*c.weights.Dense.In]
		for i, v := range flat {
			acc += row[i] * v
		}
		logits[o] = acc
	}
	scores := softmax(logits)

	preds := make([]Prediction, len(scores))
	for i, s := range scores {
		preds[i] = Prediction{Label: c.config.Classes[i], Score: s}
	}
	return preds, nil
}

// 3x3 convolution with zero padding and stride 1, followed by ReLU
func convolve(in [][]float32, width, height int, layer *ConvWeights) [][]float32 {
	out := make([][]float32, layer.Out)
	for o := 0; o < layer.Out; o++ {
		dst := make([]float32, width*height)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				acc := layer.Bias[o]
				for i := 0; i < layer.In; i++ {
					src := in[i]
					k := layer.Kernel[(o*layer.In+i)*9:]
					for ky := -1; ky <= 1; ky++ {
						sy := y + ky
						if sy < 0 || sy >= height {
							continue
						}
						for kx := -1; kx <= 1; kx++ {
							sx := x + kx
							if sx < 0 || sx >= width {
								continue
							}
							acc += k[(ky+1)*3+(kx+1)] * src[sy*width+sx]
						}
					}
				}
				if acc < 0 {
					acc = 0
				}
				dst[y*width+x] = acc
			}
		}
		out[o] = dst
	}
	return out
}

// 2x2 max-pool with stride 2
func maxPool2(in [][]float32, width, height int) (out [][]float32, outWidth, outHeight int) {
	outWidth = width / 2
	outHeight = height / 2
	out = make([][]float32, len(in))
	for c, src := range in {
		dst := make([]float32, outWidth*outHeight)
		for y := 0; y < outHeight; y++ {
			for x := 0; x < outWidth; x++ {
				sy := y * 2
				sx := x * 2
				m := src[sy*width+sx]
				m = math32.Max(m, src[sy*width+sx+1])
				m = math32.Max(m, src[(sy+1)*width+sx])
				m = math32.Max(m, src[(sy+1)*width+sx+1])
				dst[y*outWidth+x] = m
			}
		}
		out[c] = dst
	}
	return out, outWidth, outHeight
}

// Flatten in HWC order, to match how the dense weights were exported
func flatten(maps [][]float32, width, height int) []float32 {
	flat := make([]float32, 0, len(maps)*width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			for c := range maps {
				flat = append(flat, maps[c][y*width+x])
			}
		}
	}
	return flat
}

func softmax(logits []float32) []float32 {
	max := logits[0]
	for _, v := range logits[1:] {
		max = math32.Max(max, v)
	}
	sum := float32(0)
	out := make([]float32, len(logits))
	for i, v := range logits {
		e := math32.Exp(v - max)
		out[i] = e
		sum += e
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
