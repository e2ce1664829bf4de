// Package api exposes the supervision status of a running lifeline host
// over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/hugo-lorenzo-mato/lifeline/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/lifeline/internal/logging"
	"github.com/hugo-lorenzo-mato/lifeline/internal/netutil"
	"github.com/hugo-lorenzo-mato/lifeline/internal/supervise"
)

// Supervisor is the view of the unit runner the API serves.
type Supervisor interface {
	Snapshot() []supervise.UnitStatus
	Lookup(id string) (*supervise.Unit, bool)
	Terminate(h supervise.Handle, caller supervise.Token) error
}

// FatalSource reports the most recent captured fatal, if any.
type FatalSource interface {
	LastFatal() *diagnostics.FatalRecord
}

// Server provides HTTP endpoints for inspecting supervised units and
// diagnostic artifacts.
type Server struct {
	router chi.Router
	units  Supervisor
	diag   FatalSource
	index  *diagnostics.Index
	logger *logging.Logger
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *logging.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithArtifactIndex enables the /artifacts endpoints.
func WithArtifactIndex(index *diagnostics.Index) ServerOption {
	return func(s *Server) {
		s.index = index
	}
}

// NewServer creates a new status API server.
func NewServer(units Supervisor, diag FatalSource, opts ...ServerOption) *Server {
	s := &Server{
		units:  units,
		diag:   diag,
		logger: logging.NewNop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.router = s.setupRouter()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRouter configures the Chi router with all routes and middleware.
func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(s.loggingMiddleware)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
		AllowCredentials: false,
		MaxAge:           300,
	})
	r.Use(corsHandler.Handler)

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/units", func(r chi.Router) {
			r.Get("/", s.handleListUnits)

			r.Route("/{unitID}", func(r chi.Router) {
				r.Get("/", s.handleGetUnit)
				r.Get("/stack", s.handleUnitStack)
				r.Post("/terminate", s.handleTerminateUnit)
			})
		})

		r.Get("/lastfatal", s.handleLastFatal)
		r.Get("/artifacts", s.handleListArtifacts)
	})

	return r
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"bytes", ww.BytesWritten(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// respondError sends a JSON error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// ListenAndServe starts the HTTP server and shuts it down when ctx ends.
// The listener is opened explicitly so teardown can close it through the
// tolerant helper even if the graceful drain times out.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		netutil.SafeCloseListener(ln)
	}()

	s.logger.Info("starting status API server", "addr", ln.Addr().String())
	err = srv.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
