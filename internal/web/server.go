// Package web serves the results of a survey run: HTML report pages, a
// JSON API, CSV exports of the plot tables and Prometheus metrics.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/RAP/internal/config"
	"github.com/JonMunkholm/RAP/internal/core"
	rapmw "github.com/JonMunkholm/RAP/internal/web/middleware"
)

// Server is the HTTP server for survey reports.
type Server struct {
	cfg      config.ServerConfig
	metrics  config.MetricsConfig
	gatherer prometheus.Gatherer

	mu     sync.RWMutex
	result *core.Result

	router *chi.Mux
	server *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithGatherer serves metrics from g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// NewServer creates a Server over the result of a run.
func NewServer(res *core.Result, cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg.Server,
		metrics:  cfg.Metrics,
		gatherer: prometheus.DefaultGatherer,
		result:   res,
		router:   chi.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// SetResult replaces the served result, for example after a new run.
func (s *Server) SetResult(res *core.Result) {
	s.mu.Lock()
	s.result = res
	s.mu.Unlock()
}

func (s *Server) current() *core.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	if len(s.cfg.TrustedProxies) > 0 {
		s.router.Use(rapmw.TrustedRealIP(s.cfg.TrustedProxies))
	} else {
		s.router.Use(middleware.RealIP)
	}
	s.router.Use(rapmw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	if s.cfg.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.cfg.RequestTimeout))
	}

	// Security hardening
	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.metrics.Enabled {
		s.router.Handle(s.metrics.Path, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	// Pages
	s.router.Get("/", s.handleIndex)
	s.router.Get("/projects/{projectID}", s.handleProjectPage)

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		r.Use(rapmw.APIKeyAuth(s.cfg.APIKeys))

		r.Get("/projects", s.handleListProjects)
		r.Get("/projects/{projectID}", s.handleGetProject)
		r.Get("/projects/{projectID}/clusters", s.handleProjectClusters)
		r.Get("/clusters", s.handleListClusters)
		r.Get("/diagnostics", s.handleDiagnostics)

		// CSV exports
		r.Get("/export/plots/{silvsys}", s.handleExportPlots)
		r.Get("/export/projects/{projectID}", s.handleExportProject)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	slog.Info("server listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prevent MIME type sniffing
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// Prevent clickjacking
		w.Header().Set("X-Frame-Options", "DENY")

		// Reports are self-contained; photos may come from the public store
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' https: data:")

		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
