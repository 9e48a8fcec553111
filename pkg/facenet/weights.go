package facenet

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Binary weight file for our small expression CNNs.
// Layout (all integers uint32 little-endian, all floats float32 little-endian):
//
//	magic "EMW1"
//	numConv
//	for each conv layer:  in, out, kernel[out*in*3*3], bias[out]
//	dense:                in, out, weight[out*in], bias[out]
//
// The file encodes only weights; the architecture (3x3 same-padding convs,
// ReLU, 2x2 max-pool after each conv, then one dense layer) is fixed.

const weightsMagic = 0x31574d45 // "EMW1"

// Sanity limit on any single dimension in the weight file, to catch
// corrupt files before we try to allocate from them.
const maxLayerDim = 1 << 20

type ConvWeights struct {
	In     int
	Out    int
	Kernel []float32 // [out][in][3][3]
	Bias   []float32 // [out]
}

type DenseWeights struct {
	In     int
	Out    int
	Weight []float32 // [out][in]
	Bias   []float32 // [out]
}

type Weights struct {
	Convs []ConvWeights
	Dense DenseWeights
}

func readDim(r io.Reader) (int, error) {
	var v uint32
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return 0, err
	}
	if v == 0 || v > maxLayerDim {
		return 0, fmt.Errorf("Invalid layer dimension %v in weight file", v)
	}
	return int(v), nil
}

func readFloats(r io.Reader, n int) ([]float32, error) {
	buf := make([]float32, n)
	if err := binary.Read(r, binary.LittleEndian, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Read a weight file from disk
func ReadWeights(filename string) (*Weights, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var magic uint32
	if err := binary.Read(f, binary.LittleEndian, &magic); err != nil {
		return nil, fmt.Errorf("Failed to read weight file header: %w", err)
	}
	if magic != weightsMagic {
		return nil, fmt.Errorf("%v is not a weight file (bad magic %08x)", filename, magic)
	}
	var numConv uint32
	if err := binary.Read(f, binary.LittleEndian, &numConv); err != nil {
		return nil, err
	}
	if numConv == 0 || numConv > 16 {
		return nil, fmt.Errorf("Weight file has unreasonable conv layer count %v", numConv)
	}

	w := &Weights{}
	for i := 0; i < int(numConv); i++ {
		in, err := readDim(f)
		if err != nil {
			return nil, err
		}
		out, err := readDim(f)
		if err != nil {
			return nil, err
		}
		kernel, err := readFloats(f, out*in*9)
		if err != nil {
			return nil, fmt.Errorf("Failed to read conv %v kernel: %w", i, err)
		}
		bias, err := readFloats(f, out)
		if err != nil {
			return nil, fmt.Errorf("Failed to read conv %v bias: %w", i, err)
		}
		w.Convs = append(w.Convs, ConvWeights{In: in, Out: out, Kernel: kernel, Bias: bias})
	}

	in, err := readDim(f)
	if err != nil {
		return nil, err
	}
	out, err := readDim(f)
	if err != nil {
		return nil, err
	}
	weight, err := readFloats(f, out*in)
	if err != nil {
		return nil, fmt.Errorf("Failed to read dense weight: %w", err)
	}
	bias, err := readFloats(f, out)
	if err != nil {
		return nil, fmt.Errorf("Failed to read dense bias: %w", err)
	}
	w.Dense = DenseWeights{In: in, Out: out, Weight: weight, Bias: bias}
	return w, nil
}

// Write a weight file. This is used by our model conversion tooling and tests.
func WriteWeights(filename string, w *Weights) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	write := func(v any) {
		if err == nil {
			err = binary.Write(f, binary.LittleEndian, v)
		}
	}
	write(uint32(weightsMagic))
	write(uint32(len(w.Convs)))
	for _, c := range w.Convs {
		write(uint32(c.In))
		write(uint32(c.Out))
		write(c.Kernel)
		write(c.Bias)
	}
	write(uint32(w.Dense.In))
	write(uint32(w.Dense.Out))
	write(w.Dense.Weight)
	write(w.Dense.Bias)
	return err
}
