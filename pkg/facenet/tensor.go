package facenet

import "fmt"

// Tensor is a batch-of-one, single-channel, row-major float32 image tensor.
// Shape is [1, Height, Width, 1].
type Tensor struct {
	Height int
	Width  int
	Data   []float32 // len = Height * Width
}

// Create a zero-filled tensor
func NewTensor(height, width int) *Tensor {
	return &Tensor{
		Height: height,
		Width:  width,
		Data:   make([]float32, height*width),
	}
}

func (t *Tensor) At(y, x int) float32 {
	return t.Data[y*t.Width+x]
}

func (t *Tensor) Set(y, x int, v float32) {
	t.Data[y*t.Width+x] = v
}

// Shape in NHWC order
func (t *Tensor) Shape() [4]int {
	return [4]int{1, t.Height, t.Width, 1}
}

func (t *Tensor) validate() error {
	if t == nil || t.Height != InputHeight || t.Width != InputWidth {
		return fmt.Errorf("Tensor shape must be [1,%v,%v,1]", InputHeight, InputWidth)
	}
	if len(t.Data) != t.Height*t.Width {
		return fmt.Errorf("Tensor data length %v does not match %vx%v", len(t.Data), t.Height, t.Width)
	}
	return nil
}
