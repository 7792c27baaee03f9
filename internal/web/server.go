// Package web provides the HTTP control panel, JSON API and live status
// stream for the sync-tester daemon.
package web

import (
	"context"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/sync-tester/internal/logic"
	"github.com/sweeney/sync-tester/internal/status"
)

// DefaultStreamInterval is how often /api/ws pushes a status frame.
const DefaultStreamInterval = 250 * time.Millisecond

// Options tunes a Server.
type Options struct {
	StreamInterval time.Duration
	Logger         *zap.SugaredLogger
}

// Server serves the control panel and API over HTTP.
type Server struct {
	httpServer     *http.Server
	tracker        *status.Tracker
	settings       *logic.Settings
	events         *Broker
	streamInterval time.Duration
	logger         *zap.SugaredLogger
}

// New creates a Server that reads state from tracker and writes
// configuration through settings.
func New(addr string, tracker *status.Tracker, settings *logic.Settings, opts Options) *Server {
	if opts.StreamInterval <= 0 {
		opts.StreamInterval = DefaultStreamInterval
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	s := &Server{
		tracker:        tracker,
		settings:       settings,
		events:         NewBroker(),
		streamInterval: opts.StreamInterval,
		logger:         opts.Logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /index.html", s.handleIndex)
	mux.HandleFunc("GET /index.json", s.handleJSON)
	mux.HandleFunc("GET /api/status", s.handleJSON)
	mux.HandleFunc("POST /api/fast-sweep", s.handleFastSweep)
	mux.HandleFunc("POST /api/frame-phase", s.handleFramePhase)
	mux.HandleFunc("POST /api/sync", s.handleSync)
	mux.HandleFunc("GET /api/ws", s.handleStream)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the route table, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// PublishEvent forwards a watcher event to every live stream client.
func (s *Server) PublishEvent(ev logic.Event) {
	s.events.Publish(ev)
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap); err != nil {
		s.logger.Warnw("render index", "error", err)
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleFastSweep(w http.ResponseWriter, r *http.Request) {
	req, err := readForm(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	enabled, hasEnabled, err := req.boolean("enabled")
	if err != nil {
		writeError(w, err)
		return
	}
	interval, hasInterval, err := req.integer("interval")
	if err != nil {
		writeError(w, err)
		return
	}

	if hasEnabled {
		s.settings.SetFastSweepEnabled(enabled)
	}
	if hasInterval {
		stored := s.settings.SetFastSweepInterval(interval)
		s.logger.Infow("fast sweep interval set", "requested", interval, "interval_ms", stored)
	}
	writeOK(w)
}

func (s *Server) handleFramePhase(w http.ResponseWriter, r *http.Request) {
	req, err := readForm(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	enabled, hasEnabled, err := req.boolean("enabled")
	if err != nil {
		writeError(w, err)
		return
	}
	rate, hasRate, err := req.integer("frame_rate")
	if err != nil {
		writeError(w, err)
		return
	}
	output, hasOutput, err := req.boolean("output")
	if err != nil {
		writeError(w, err)
		return
	}
	lock, hasLock, err := req.boolean("lock")
	if err != nil {
		writeError(w, err)
		return
	}

	if hasEnabled {
		s.settings.SetFramePhaseEnabled(enabled)
	}
	if hasRate {
		stored := s.settings.SetFrameRate(rate)
		_, half := s.settings.FrameRate()
		s.logger.Infow("frame rate set", "requested", rate, "rate_hz", stored, "half_period_ms", half)
	}
	if hasOutput {
		s.settings.SetOutputEnabled(output)
	}
	if hasLock {
		s.settings.SetLockEnabled(lock)
	}
	writeOK(w)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	req, err := readForm(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	enabled, hasEnabled, err := req.boolean("enabled")
	if err != nil {
		writeError(w, err)
		return
	}

	if hasEnabled {
		s.settings.SetSyncDetectionEnabled(enabled)
		s.logger.Infow("sync detection set", "enabled", enabled)
	}
	writeOK(w)
}
