package server

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config is the JSON config file of the server.
// All paths may be relative to the working directory.
type Config struct {
	DataDir          string        `json:"dataDir"`          // Root directory for our sqlite DB (and recordings, if filesystem storage is left on defaults)
	RecordingStorage StorageConfig `json:"recordingStorage"` // Where recording blobs go
	Model            ModelConfig   `json:"model"`            // Emotion classifier model
	HTTPS            HTTPSConfig   `json:"https"`            // If Hostname is set, serve TLS via ACME
}

// One of the storage options must be configured (i.e. either 'filesystem' or 'gcs')
type StorageConfig struct {
	Filesystem *StorageConfigFS  `json:"filesystem"`
	GCS        *StorageConfigGCS `json:"gcs"`
}

type StorageConfigFS struct {
	Root string `json:"root"` // Path to the root of the filesystem
}

type StorageConfigGCS struct {
	Bucket string `json:"bucket"` // Name of the GCS bucket
}

type ModelConfig struct {
	Dir         string `json:"dir"`         // Directory where model files live (default <dataDir>/models)
	Name        string `json:"name"`        // Model name, eg "emonet-48"
	DownloadURL string `json:"downloadURL"` // Base URL for model downloads ("" disables downloads)
}

type HTTPSConfig struct {
	Hostname string `json:"hostname"` // If set, listen on 443 with an ACME certificate for this hostname
	CertDir  string `json:"certDir"`  // Certificate cache directory (default <dataDir>/certs)
}

// Load a config file, or return defaults if filename is empty
func LoadConfig(filename string) (*Config, error) {
	cfg := &Config{}
	if filename != "" {
		raw, err := os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("Error parsing config file %v: %w", filename, err)
		}
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		c.DataDir = filepath.Join(home, "moodcam")
	}
	if c.RecordingStorage.Filesystem == nil && c.RecordingStorage.GCS == nil {
		c.RecordingStorage.Filesystem = &StorageConfigFS{Root: filepath.Join(c.DataDir, "recordings")}
	}
	if c.Model.Dir == "" {
		c.Model.Dir = filepath.Join(c.DataDir, "models")
	}
	if c.Model.Name == "" {
		c.Model.Name = DefaultModelName
	}
	if c.HTTPS.CertDir == "" {
		c.HTTPS.CertDir = filepath.Join(c.DataDir, "certs")
	}
}
