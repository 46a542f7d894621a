// Package server provides the HTTP server of the drishti gaze pointer.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ayusman/drishti/internal/capture"
	"github.com/ayusman/drishti/internal/gaze"
	"github.com/ayusman/drishti/internal/log"
	"github.com/ayusman/drishti/internal/plugin"
	"github.com/ayusman/drishti/internal/server/api"
	"github.com/ayusman/drishti/internal/store"
)

// shutdownTimeout bounds graceful shutdown in Run.
const shutdownTimeout = 5 * time.Second

// Config holds the server dependencies. Every field is optional; routes
// whose dependency is missing are not registered.
type Config struct {
	StaticDir   string
	Store       *store.Store
	Pipeline    api.Pipeline
	Broadcaster *gaze.Broadcaster
	Preview     *capture.Preview
	Plugins     *plugin.Manager
}

// Server is the HTTP front end.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a Server and registers its routes.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Pipeline != nil {
		calibration := api.NewCalibrationHandler(s.config.Pipeline, s.config.Store)
		s.mux.Handle("/api/calibration", calibration)
		s.mux.Handle("/api/calibration/", calibration)
	}

	if s.config.Store != nil {
		sessions := api.NewSessionHandler(s.config.Store, s.config.Pipeline)
		s.mux.Handle("/api/sessions", sessions)
		s.mux.Handle("/api/sessions/", sessions)

		actions := api.NewActionHandler(s.config.Store, s.config.Plugins)
		s.mux.Handle("/api/actions", actions)
		s.mux.Handle("/api/actions/", actions)

		s.mux.Handle("/api/settings/tuning", api.NewTuningHandler(s.config.Store, s.config.Pipeline))
	}

	if s.config.Plugins != nil {
		s.mux.Handle("/api/plugins", api.NewPluginHandler(s.config.Plugins))
	}

	if s.config.Broadcaster != nil {
		s.mux.Handle("/api/gaze", NewGazeHandler(s.config.Broadcaster))
	}

	if s.config.Preview != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Preview))
	}

	if s.config.StaticDir != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.Pipeline != nil {
		if sess := s.config.Pipeline.Session(); sess != nil {
			response["session"] = sess.ID()
			response["calibrated"] = sess.Calibrated()
		}
	}
	if s.config.Broadcaster != nil {
		response["clients"] = s.config.Broadcaster.Subscribers()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
