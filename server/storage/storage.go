package storage

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Storage is an abstraction of a blob store for finished recordings.
// Recordings are written once, read back for playback, and deleted; there
// is no update path. Metadata lives in recdb, not here.
type Storage interface {
	// When finished, you must close the WriteCloser
	WriteFile(name string) (io.WriteCloser, error)

	// When finished, you must close File.Reader
	ReadFile(name string) (*File, error)

	DeleteFile(name string) error
}

// File is an element in blob storage
type File struct {
	Reader     io.ReadCloser
	ModifiedAt time.Time
	Size       int64
}

var ErrInvalidName = errors.New("invalid blob name")

// Blob names must never escape the storage root
func checkName(name string) error {
	if name == "" || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %v", ErrInvalidName, name)
	}
	return nil
}

// Write the entire content of a reader as a blob
func WriteFile(s Storage, name string, content io.Reader) (int64, error) {
	f, err := s.WriteFile(name)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, content)
	errClose := f.Close()
	if err != nil {
		return n, err
	}
	return n, errClose
}

// Read an entire blob into memory
func ReadFile(s Storage, name string) ([]byte, error) {
	f, err := s.ReadFile(name)
	if err != nil {
		return nil, err
	}
	defer f.Reader.Close()
	return io.ReadAll(f.Reader)
}
