package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/caddyserver/certmagic"
	"github.com/cyclopcam/logs"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/moodcam/moodcam/pkg/emotion"
	"github.com/moodcam/moodcam/server/classifier"
	"github.com/moodcam/moodcam/server/recdb"
	"github.com/moodcam/moodcam/server/session"
	"github.com/moodcam/moodcam/server/storage"
)

// DefaultModelName is the model we download and load when the config doesn't name one
const DefaultModelName = "emonet-48"

// Server startup flags
const (
	ServerFlagHotReloadWWW = 1 // Serve www from the filesystem instead of the embedded copy
)

type Server struct {
	HotReloadWWW bool
	Log          logs.Log

	cfg        *Config
	signalIn   chan os.Signal
	httpServer *http.Server
	httpRouter *httprouter.Router
	wsUpgrader websocket.Upgrader
	classifier *classifier.Handle
	recordings *recdb.RecordingDB
	storage    storage.Storage

	sessionsLock  sync.Mutex
	sessions      map[int64]*session.Session
	nextSessionID atomic.Int64

	shutdownStarted chan bool // closed when shutdown commences
}

func NewServer(logger logs.Log, cfg *Config, flags int) (*Server, error) {
	recordings, err := recdb.Open(logger, cfg.DataDir)
	if err != nil {
		return nil, err
	}

	// Open blob store
	var store storage.Storage
	if cfg.RecordingStorage.GCS != nil {
		store, err = storage.NewGCS(logger, cfg.RecordingStorage.GCS.Bucket)
	} else {
		store, err = storage.NewFilesystem(logger, cfg.RecordingStorage.Filesystem.Root)
	}
	if err != nil {
		return nil, err
	}

	s := &Server{
		HotReloadWWW:    flags&ServerFlagHotReloadWWW != 0,
		Log:             logger,
		cfg:             cfg,
		classifier:      classifier.NewHandle(logger),
		recordings:      recordings,
		storage:         store,
		sessions:        map[int64]*session.Session{},
		shutdownStarted: make(chan bool),
	}
	if err := s.setupHttpRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load the emotion model without blocking startup.
// Sessions started before the model is ready fall back to simulated results.
func (s *Server) LoadModelBackground() {
	go func() {
		s.classifier.Load(classifier.LoadOptions{
			ModelDir:        s.cfg.Model.Dir,
			ModelName:       s.cfg.Model.Name,
			DownloadBaseURL: s.cfg.Model.DownloadURL,
		})
	}()
}

// port example: ":8080"
func (s *Server) ListenHTTP(port string) error {
	s.Log.Infof("Listening on %v", port)
	s.httpServer = &http.Server{
		Addr:    port,
		Handler: s.httpRouter,
	}
	return s.httpServer.ListenAndServe()
}

// Serve HTTPS with an automatic ACME certificate for the configured hostname
func (s *Server) ListenHTTPS() error {
	s.Log.Infof("Listening on 443 for %v", s.cfg.HTTPS.Hostname)
	certmagic.Default.Storage = &certmagic.FileStorage{Path: s.cfg.HTTPS.CertDir}
	certmagic.DefaultACME.Agreed = true
	return certmagic.HTTPS([]string{s.cfg.HTTPS.Hostname}, s.httpRouter)
}

func (s *Server) ListenForKillSignals() {
	s.signalIn = make(chan os.Signal, 1)
	signal.Notify(s.signalIn, os.Interrupt, syscall.SIGTERM)
	go func() {
		if sig, ok := <-s.signalIn; ok {
			s.Log.Infof("Received OS signal '%v'. Shutting down", sig.String())
			s.Shutdown()
		}
	}()
}

func (s *Server) IsShutdown() bool {
	select {
	case <-s.shutdownStarted:
		return true
	default:
		return false
	}
}

func (s *Server) Shutdown() {
	s.Log.Infof("Shutdown")
	close(s.shutdownStarted)
	if s.signalIn != nil {
		signal.Stop(s.signalIn)
		close(s.signalIn)
	}

	s.sessionsLock.Lock()
	for _, sess := range s.sessions {
		sess.Close()
	}
	s.sessions = map[int64]*session.Session{}
	s.sessionsLock.Unlock()

	s.classifier.Close()

	if s.httpServer != nil {
		s.Log.Infof("Closing HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := s.httpServer.Shutdown(ctx)
		defer cancel()
		if err != nil {
			s.Log.Warnf("Shutdown complete, with error: %v", err)
			return
		}
	}
	s.Log.Infof("Shutdown complete")
}

// Create a new session and register it. onResult/onNotice receive detection
// results and user facing notices for delivery to the client.
func (s *Server) newSession(onResult func(emotion.DetectionResult), onNotice func(string)) *session.Session {
	id := s.nextSessionID.Add(1)
	sess := session.NewSession(id, s.Log, s.classifier, onResult, onNotice)
	s.sessionsLock.Lock()
	s.sessions[id] = sess
	s.sessionsLock.Unlock()
	return sess
}

func (s *Server) removeSession(sess *session.Session) {
	s.sessionsLock.Lock()
	delete(s.sessions, sess.ID)
	s.sessionsLock.Unlock()
	sess.Close()
}

func (s *Server) getSession(id int64) *session.Session {
	s.sessionsLock.Lock()
	defer s.sessionsLock.Unlock()
	return s.sessions[id]
}
