// Package server is the HTTP ingress: uploads, job status, the progress
// websocket and health/metrics endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"
	zlog "github.com/rs/zerolog/log"

	"pkg.jsn.cam/logmate/internal/blob"
	"pkg.jsn.cam/logmate/internal/metrics"
	"pkg.jsn.cam/logmate/internal/queue"
	"pkg.jsn.cam/logmate/internal/store"
	"pkg.jsn.cam/logmate/pkg/logmate"
	"pkg.jsn.cam/logmate/pkg/logmate/httpx"
	"pkg.jsn.cam/logmate/pkg/logmate/notify"
)

const shutdownTimeout = 10 * time.Second

// Options holds HTTP settings.
type Options struct {
	Addr              string
	UploadDir         string
	MaxUploadBytes    int64
	AllowedOrigins    []string
	CSRF              bool
	ReadHeaderTimeout time.Duration
	// Group is the event group websocket clients subscribe to.
	Group string
	// QueueKind is reported by /health.
	QueueKind string
}

// Deps are the collaborators a Server hands work to.
type Deps struct {
	Jobs    *store.JobStore
	Queue   queue.Queue
	Hub     *notify.Hub
	Metrics *metrics.Metrics // optional
	Blob    *blob.S3         // optional
}

// Server wraps the HTTP mux and its collaborators.
type Server struct {
	opts     Options
	deps     Deps
	mux      *http.ServeMux
	upgrader websocket.Upgrader
	origins  map[string]bool
}

// NewServer creates the upload directory and registers routes.
func NewServer(opts Options, deps Deps) (*Server, error) {
	if deps.Jobs == nil || deps.Queue == nil || deps.Hub == nil {
		return nil, errors.New("server: jobs, queue and hub are required")
	}
	if err := os.MkdirAll(opts.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	if opts.Group == "" {
		opts.Group = logmate.DefaultGroup
	}

	s := &Server{
		opts:    opts,
		deps:    deps,
		mux:     http.NewServeMux(),
		origins: make(map[string]bool, len(opts.AllowedOrigins)),
	}
	for _, o := range opts.AllowedOrigins {
		s.origins[o] = true
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	s.setupRoutes()

	return s, nil
}

func (s *Server) setupRoutes() {
	upload := s.countUploads(s.requireCSRF(httpx.Wrap(s.handleUpload)))
	s.mux.Handle("POST /upload/", upload)
	s.mux.Handle("POST /api/upload", upload)
	s.mux.HandleFunc("GET /csrf-token/", httpx.Wrap(s.handleCSRFToken))

	s.mux.HandleFunc("GET /ws/logstatus/", s.handleLogStatus)

	s.mux.HandleFunc("GET /api/jobs", httpx.Wrap(s.handleJobList))
	s.mux.HandleFunc("GET /api/jobs/{jobID}", httpx.Wrap(s.handleJobStatus))
	s.mux.HandleFunc("GET /api/jobs/{jobID}/result", httpx.Wrap(s.handleJobResult))

	s.mux.HandleFunc("GET /health", httpx.Wrap(s.handleHealth))
	if s.deps.Metrics != nil {
		s.mux.Handle("GET /metrics", s.deps.Metrics.Handler())
	}
}

// Handler returns the root handler with CORS applied.
func (s *Server) Handler() http.Handler {
	return s.cors(s.mux)
}

// Start serves on opts.Addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.opts.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	log := zlog.With().Str("component", "server").Logger()
	log.Info().Str("addr", ln.Addr().String()).Msg("starting server")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	// Websocket handlers end with their request context.
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
