// Package api implements the local dashboard server: a JSON API and a
// websocket stream over one review session.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sprite-ai/crdash/internal/registry"
	"github.com/sprite-ai/crdash/internal/session"
)

// Server is the crdash dashboard server. It serves a single session.
type Server struct {
	addr    string
	mux     *http.ServeMux
	server  *http.Server
	store   *session.Store
	loader  *registry.Loader
	uploads *registry.Progress
	metrics *metrics
	logger  *slog.Logger
	now     func() time.Time
	unsub   func()

	readers        int
	uploadStep     int
	uploadInterval time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithReadConcurrency bounds how many uploaded files are decoded at once.
func WithReadConcurrency(n int) Option {
	return func(s *Server) { s.readers = n }
}

// WithUploadProgress sets the step and tick of the upload progress animation.
func WithUploadProgress(step int, interval time.Duration) Option {
	return func(s *Server) {
		s.uploadStep = step
		s.uploadInterval = interval
	}
}

// New creates a server over st listening on addr.
func New(addr string, st *session.Store, opts ...Option) *Server {
	s := &Server{
		addr:    addr,
		store:   st,
		logger:  slog.Default(),
		now:     time.Now,
		readers: 4,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.loader = registry.NewLoader(st, s.logger, s.readers)
	s.uploads = registry.NewProgress(s.uploadStep, s.uploadInterval, nil)
	s.logger = s.logger.With(slog.String("component", "api"))

	s.metrics = newMetrics(st)
	s.unsub = st.Subscribe(s.metrics.observe)

	s.mux = http.NewServeMux()
	s.registerRoutes()
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/state", s.handleState)
	s.mux.HandleFunc("POST /api/actions", s.handleAction)
	s.mux.HandleFunc("POST /api/files/{kind}", s.handleUpload)
	s.mux.HandleFunc("DELETE /api/files/{id}", s.handleRemoveFile)
	s.mux.HandleFunc("POST /api/review/toggle", s.handleToggle)
	s.mux.HandleFunc("POST /api/review/accept-file", s.handleAcceptFile)
	s.mux.HandleFunc("POST /api/review/reject-file", s.handleRejectFile)
	s.mux.HandleFunc("GET /api/review/findings", s.handleFindings)
	s.mux.HandleFunc("POST /api/diff", s.handleDiff)
	s.mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	s.mux.HandleFunc("GET /api/progress", s.handleProgress)
	s.mux.HandleFunc("GET /api/report", s.handleReport)
	s.mux.HandleFunc("GET /api/ws", s.handleWebSocket)
	s.mux.Handle("GET /metrics", s.metrics.handler())
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.logger.Info("dashboard listening", slog.String("addr", s.addr))
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests, waits for in-flight ones and releases
// the upload tickers.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.Close()
	return s.server.Shutdown(ctx)
}

// Close detaches the server from the store.
func (s *Server) Close() {
	s.unsub()
	s.uploads.Close()
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		s.logger.Warn("json encode error", slog.Any("error", err))
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// readJSON decodes a JSON request body into v.
func readJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("empty request body")
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}
