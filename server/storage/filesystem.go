package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cyclopcam/logs"
)

// Filesystem is a blob store on the local disk
type Filesystem struct {
	Root string
	log  logs.Log
}

func NewFilesystem(log logs.Log, root string) (*Filesystem, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(absRoot, 0755); err != nil {
		return nil, fmt.Errorf("Failed to create recording storage root %v: %w", absRoot, err)
	}
	return &Filesystem{
		Root: absRoot,
		log:  log,
	}, nil
}

func (fs *Filesystem) WriteFile(name string) (io.WriteCloser, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	fs.log.Infof("Writing recording %v", name)
	fullPath := filepath.Join(fs.Root, name)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(fullPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
}

func (fs *Filesystem) ReadFile(name string) (*File, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	file, err := os.Open(filepath.Join(fs.Root, name))
	if err != nil {
		return nil, err
	}
	st, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	return &File{
		Reader:     file,
		ModifiedAt: st.ModTime(),
		Size:       st.Size(),
	}, nil
}

func (fs *Filesystem) DeleteFile(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	fs.log.Infof("Deleting recording %v", name)
	return os.Remove(filepath.Join(fs.Root, name))
}
