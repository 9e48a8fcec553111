package recdb

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"gorm.io/gorm"
)

// RecordingDB is the index of finished recordings.
// The media blobs themselves live in a storage.Storage, keyed by Recording.Filename().
type RecordingDB struct {
	Root string // Directory where our sqlite DB is stored

	log logs.Log
	db  *gorm.DB
}

// Open or create a recording DB
func Open(log logs.Log, root string) (*RecordingDB, error) {
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0770); err != nil {
		return nil, fmt.Errorf("Failed to create recording DB storage path '%v': %w", root, err)
	}

	dbPath := filepath.Join(root, "recordings.sqlite")
	log.Infof("Opening recording DB at '%v'", dbPath)
	rdb, err := dbh.OpenDB(log, dbh.MakeSqliteConfig(dbPath), Migrations(log), 0)
	if err != nil {
		return nil, fmt.Errorf("Failed to open recording database %v: %w", dbPath, err)
	}

	return &RecordingDB{
		Root: root,
		log:  log,
		db:   rdb,
	}, nil
}

// Create a new Recording record with a fresh RandomID and the given start time.
// The record is not saved to the DB yet. The caller writes the blob to storage
// under Filename() first, then calls Add.
func NewRecording(startTime time.Time, format string) (*Recording, error) {
	rnd := [4]byte{}
	if _, err := rand.Read(rnd[:]); err != nil {
		return nil, err
	}
	return &Recording{
		RandomID:  hex.EncodeToString(rnd[:]),
		StartTime: dbh.MakeIntTime(startTime),
		Format:    format,
	}, nil
}

// Save a recording record to the DB, populating its ID
func (r *RecordingDB) Add(rec *Recording) error {
	return r.db.Create(rec).Error
}

// Fetch all recordings, newest first
func (r *RecordingDB) List() ([]Recording, error) {
	recs := []Recording{}
	if err := r.db.Order("start_time DESC").Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// Fetch one recording by ID
func (r *RecordingDB) Get(id int64) (*Recording, error) {
	rec := Recording{}
	if err := r.db.First(&rec, id).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// Delete a recording record. The caller is responsible for deleting the blob.
func (r *RecordingDB) Delete(id int64) error {
	return r.db.Delete(&Recording{}, id).Error
}
