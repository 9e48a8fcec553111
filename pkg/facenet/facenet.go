package facenet

import (
	"encoding/json"
	"os"
)

// Package facenet is the inference layer for small facial-expression networks.
// To load a model from disk, use the server/classifier package.

// Input contract of the pretrained artifacts we ship: 48x48 grayscale,
// batch size 1. This is fixed by the model, not configurable.
const (
	InputWidth  = 48
	InputHeight = 48
)

// Prediction is one per-class score in the model's own vocabulary.
// Predictions never travel beyond the classifier adapter; the adapter
// maps them onto the canonical emotion schema and discards them.
type Prediction struct {
	Label string
	Score float32
}

// Classifier is given a preprocessed tensor, and returns per-class scores
// in the model's native label order.
type Classifier interface {
	// Close releases the model. You must call this when finished.
	Close()

	// Classify runs a forward pass on a [1,48,48,1] tensor.
	// The scores are softmax outputs, so they sum to 1.
	Classify(t *Tensor) ([]Prediction, error)

	// Model config. Callers assume it remains constant after creation.
	Config() *ModelConfig
}

// ModelConfig is saved in a JSON file alongside the model weights
type ModelConfig struct {
	Architecture string   `json:"architecture"` // eg "emonet"
	Width        int      `json:"width"`        // eg 48
	Height       int      `json:"height"`       // eg 48
	Classes      []string `json:"classes"`      // Native label vocabulary, in output order
}

// Load model config from a JSON file
func LoadModelConfig(filename string) (*ModelConfig, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	config := &ModelConfig{}
	if err := json.Unmarshal(b, config); err != nil {
		return nil, err
	}
	return config, nil
}
