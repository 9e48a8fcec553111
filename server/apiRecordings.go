package server

import (
	"io"
	"net/http"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
	"github.com/moodcam/moodcam/server/recdb"
	"github.com/moodcam/moodcam/server/storage"
)

// Container formats that we accept from the browser's recorder
var contentTypeToFormat = map[string]string{
	"video/webm": "webm",
	"video/mp4":  "mp4",
}

// Upload a finished recording. The body is the container blob produced by the
// client's recorder, verbatim. Query params:
//
//	session    - optional live session ID, used to attach emotion stats
//	durationMS - duration reported by the client's recorder
func (s *Server) httpPutRecording(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	maxSize := int64(256 * 1024 * 1024)
	if r.ContentLength > maxSize {
		www.PanicBadRequestf("Request body is too large: %v. Maximum size: %v MB", r.ContentLength, maxSize/(1024*1024))
	}
	contentType := r.Header.Get("Content-Type")
	format := contentTypeToFormat[contentType]
	if format == "" {
		www.PanicBadRequestf("Unsupported Content-Type '%v'. Supported: video/webm, video/mp4", contentType)
	}

	rec, err := recdb.NewRecording(time.Now(), format)
	www.Check(err)
	rec.DurationMS = www.QueryInt64(r, "durationMS")

	// Emotion stats come from the live session, if the client tells us which one it used
	if sessionID := www.QueryInt64(r, "session"); sessionID != 0 {
		if sess := s.getSession(sessionID); sess != nil {
			dominant, n := sess.Dominant()
			if n != 0 {
				rec.DominantEmotion = dominant
				rec.Emotions = dbh.MakeJSONField(sess.Smoothed())
			}
		}
	}

	size, err := storage.WriteFile(s.storage, rec.Filename(), io.LimitReader(r.Body, maxSize))
	www.Check(err)
	rec.Size = size
	if err := s.recordings.Add(rec); err != nil {
		// Don't leave an orphaned blob behind
		s.storage.DeleteFile(rec.Filename())
		www.Check(err)
	}
	s.Log.Infof("New recording %v (%v, %v bytes)", rec.ID, rec.Format, rec.Size)
	www.SendID(w, rec.ID)
}

func (s *Server) httpListRecordings(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	recs, err := s.recordings.List()
	www.Check(err)
	www.CacheNever(w)
	www.SendJSON(w, recs)
}

func (s *Server) getRecordingOrPanic(id string) *recdb.Recording {
	rec, err := s.recordings.Get(www.ParseID(id))
	if err != nil {
		www.PanicNotFound()
	}
	return rec
}

func (s *Server) httpGetRecordingVideo(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	rec := s.getRecordingOrPanic(params.ByName("id"))
	file, err := s.storage.ReadFile(rec.Filename())
	www.Check(err)
	defer file.Reader.Close()
	w.Header().Set("Content-Type", "video/"+rec.Format)
	if seeker, ok := file.Reader.(io.ReadSeeker); ok {
		http.ServeContent(w, r, "video."+rec.Format, rec.StartTime.Get(), seeker)
	} else {
		io.Copy(w, file.Reader)
	}
}

func (s *Server) httpDeleteRecording(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	rec := s.getRecordingOrPanic(params.ByName("id"))
	www.Check(s.recordings.Delete(rec.ID))
	if err := s.storage.DeleteFile(rec.Filename()); err != nil {
		s.Log.Warnf("Failed to delete blob for recording %v: %v", rec.ID, err)
	}
	www.SendOK(w)
}
