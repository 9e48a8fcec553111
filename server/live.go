package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/logs"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/moodcam/moodcam/pkg/emotion"
	"github.com/moodcam/moodcam/server/detect"
	"github.com/moodcam/moodcam/server/session"
)

// Number of outbound events we will buffer before dropping, so that a slow
// browser never blocks the detection loop
const liveSendBufferSize = 16

// Sent by client over websocket as a TEXT message.
// BINARY messages are JPEG preview frames.
// SYNC-LIVE-COMMAND-JSON
type liveCommandJSON struct {
	Command      string  `json:"command"`      // "start", "stop", "video"
	IntervalMS   int     `json:"intervalMS"`   // "start": detection interval (0 = default 200)
	CenterCrop   float64 `json:"centerCrop"`   // "start": center crop fraction of the shorter side (0 = full frame)
	VideoEnabled *bool   `json:"videoEnabled"` // "video": camera toggle state
}

// Sent to client over websocket as a TEXT message.
// SYNC-LIVE-EVENT-JSON
type liveEventJSON struct {
	Type      string                   `json:"type"` // "hello", "detection", "notice"
	SessionID int64                    `json:"sessionID,omitempty"`
	Detection *emotion.DetectionResult `json:"detection,omitempty"`
	Notice    string                   `json:"notice,omitempty"`
}

type liveConn struct {
	log       logs.Log
	sendQueue chan *liveEventJSON

	statsLock      sync.Mutex // enqueue is called from the reader and the detection loop
	nEventsDropped int64
	nEventsSent    int64
	lastDropMsg    time.Time
}

// Live session websocket. One connection is one session: frames come in,
// detection results and notices go out. The session dies with the socket.
func (s *Server) httpLive(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Errorf("live websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	lc := &liveConn{
		log:       s.Log,
		sendQueue: make(chan *liveEventJSON, liveSendBufferSize),
	}
	writerDone := make(chan struct{})
	go lc.writer(conn, writerDone)
	defer func() {
		close(lc.sendQueue)
		<-writerDone
	}()

	// The session is torn down before the send queue is closed, so detection
	// callbacks can never hit a closed channel
	sess := s.newSession(
		func(res emotion.DetectionResult) {
			lc.enqueue(&liveEventJSON{Type: "detection", Detection: &res})
		},
		func(notice string) {
			lc.enqueue(&liveEventJSON{Type: "notice", Notice: notice})
		})
	defer s.removeSession(sess)

	s.Log.Infof("Live session %v connected from %v", sess.ID, r.RemoteAddr)
	lc.enqueue(&liveEventJSON{Type: "hello", SessionID: sess.ID})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			s.Log.Infof("Live session %v closed: %v", sess.ID, err)
			return
		}
		switch msgType {
		case websocket.BinaryMessage:
			img, err := cimg.Decompress(data)
			if err != nil {
				s.Log.Warnf("Live session %v: failed to decode frame: %v", sess.ID, err)
				continue
			}
			sess.AddFrame(img, time.Now())
		case websocket.TextMessage:
			cmd := liveCommandJSON{}
			if err := json.Unmarshal(data, &cmd); err != nil {
				s.Log.Warnf("Live session %v: failed to decode command: %v", sess.ID, err)
				continue
			}
			s.handleLiveCommand(sess, &cmd)
		}
	}
}

func (s *Server) handleLiveCommand(sess *session.Session, cmd *liveCommandJSON) {
	// SYNC-LIVE-COMMAND-JSON
	switch cmd.Command {
	case "start":
		interval := detect.DefaultInterval
		if cmd.IntervalMS > 0 {
			interval = time.Duration(cmd.IntervalMS) * time.Millisecond
		}
		sess.StartRecording(interval, cmd.CenterCrop)
	case "stop":
		sess.StopRecording()
	case "video":
		if cmd.VideoEnabled != nil {
			sess.SetVideoEnabled(*cmd.VideoEnabled)
		}
	default:
		s.Log.Infof("Live session %v: unknown command '%v'", sess.ID, cmd.Command)
	}
}

// enqueue adds an event to the send queue, dropping it if the client can't
// keep up. Detection results are ephemeral, so dropping is harmless.
func (lc *liveConn) enqueue(ev *liveEventJSON) {
	lc.statsLock.Lock()
	defer lc.statsLock.Unlock()
	select {
	case lc.sendQueue <- ev:
		lc.nEventsSent++
	default:
		lc.nEventsDropped++
		if now := time.Now(); now.Sub(lc.lastDropMsg) > 5*time.Second {
			lc.log.Infof("Dropped %v/%v live events", lc.nEventsDropped, lc.nEventsDropped+lc.nEventsSent)
			lc.lastDropMsg = now
		}
	}
}

// writer drains the send queue onto the websocket, so that a slow client
// blocks here and not in the detection callback
func (lc *liveConn) writer(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for ev := range lc.sendQueue {
		j, err := json.Marshal(ev)
		if err != nil {
			lc.log.Warnf("Failed to marshal live event: %v", err)
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, j); err != nil {
			lc.log.Infof("Error writing to live websocket: %v", err)
			return
		}
	}
}
