package recdb

import (
	"github.com/cyclopcam/dbh"
	"github.com/moodcam/moodcam/pkg/emotion"
)

// BaseModel is our base class for a GORM model.
// The default GORM Model uses int, but we prefer int64.
type BaseModel struct {
	ID int64 `gorm:"primaryKey" json:"id"`
}

// Recording is one finished recording. The media blob lives in storage
// under Filename(); this row is the index entry.
// SYNC-RECORDING-RECORD
type Recording struct {
	BaseModel
	RandomID        string                         `json:"randomID"`        // Part of the blob name, to keep names unique across merged databases
	StartTime       dbh.IntTime                    `json:"startTime"`
	DurationMS      int64                          `json:"durationMS"`      // Reported by the client's recorder
	Format          string                         `json:"format"`          // Container format, eg "webm", "mp4"
	Size            int64                          `json:"size"`            // Blob size in bytes
	DominantEmotion string                         `json:"dominantEmotion"` // Most frequent top emotion during the recording ("" if detection never ran)
	Emotions        *dbh.JSONField[emotion.Vector] `json:"emotions"`        // Average emotion vector over the recording
}

// Blob name of this recording in storage
func (r *Recording) Filename() string {
	t := r.StartTime.Get()
	return t.Format("2006-01/02/15-04-05-") + r.RandomID + "." + r.Format
}
