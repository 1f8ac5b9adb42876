// Package server provides the HTTP control surface for mudra.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ayusman/mudra/internal/log"
	"github.com/ayusman/mudra/internal/scribe"
	"github.com/ayusman/mudra/internal/server/api"
)

// Controller is the pipeline as seen by the server.
type Controller interface {
	api.Controller
	OnEvent(l scribe.Listener)
}

// Preview renders the display frame for the MJPEG stream.
type Preview interface {
	EncodePreview(box image.Rectangle, highlight bool) ([]byte, error)
}

// Config holds the server configuration. Routes whose dependency is nil
// are not registered.
type Config struct {
	StaticDir  string
	Controller Controller
	Preview    Preview
	History    api.History
	// Inset is the gap between the drawn box and the crop window.
	Inset          int
	StreamInterval time.Duration
	Logger         *slog.Logger
}

// Server represents the HTTP server for the mudra application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	log    *slog.Logger

	mu  sync.Mutex
	srv *http.Server
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Logger == nil {
		config.Logger = log.L()
	}
	if config.StreamInterval <= 0 {
		config.StreamInterval = DefaultStreamInterval
	}

	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		log:    config.Logger.With("component", "server"),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if c := s.config.Controller; c != nil {
		api.NewTranscriptHandler(c).Register(s.mux)
		s.mux.Handle("/api/events", NewEventsHandler(c, s.log))
	}

	if s.config.History != nil {
		s.mux.Handle("/api/history", api.NewHistoryHandler(s.config.History))
	}

	if s.config.Preview != nil && s.config.Controller != nil {
		stream := NewStreamHandler(s.config.Preview, s.config.Controller, s.config.Inset, s.config.StreamInterval)
		s.mux.Handle("/api/stream", stream)
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address. It returns
// nil after Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.mu.Lock()
	s.srv = srv
	s.mu.Unlock()

	s.log.Info("listening", "addr", addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops a server started with ListenAndServe.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
