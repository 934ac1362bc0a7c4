// Package web serves the dataset viewer over HTTP: HTML pages for people
// and a JSON API for scripts.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/tabview/internal/config"
	"github.com/JonMunkholm/tabview/internal/core"
	"github.com/JonMunkholm/tabview/internal/web/middleware"
)

// Server is the HTTP server for the viewer.
type Server struct {
	service *core.Service
	cfg     *config.Config
	router  *chi.Mux
	limits  []*rateLimiter

	mu     sync.Mutex
	server *http.Server
}

// NewServer builds the router. Call Close (or Shutdown) to stop the rate
// limiter sweepers.
func NewServer(service *core.Service, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Compress(5, "text/html", "text/css", "application/json", "text/csv"))
	s.router.Use(s.securityHeaders)

	if s.cfg.Rate.Enabled {
		s.router.Use(s.newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute).middleware)
	}
}

func (s *Server) setupRoutes() {
	timeout := func(next http.Handler) http.Handler { return next }
	if d := s.cfg.Server.RequestTimeout; d > 0 {
		timeout = chimw.Timeout(d)
	}

	s.router.Get("/healthz", s.handleHealth)

	s.router.Group(func(r chi.Router) {
		r.Use(timeout)
		r.Get("/", s.handleDashboard)
		r.Get("/view/{kind}", s.handleView)
		r.With(s.uploadRateLimit()).Post("/view/{kind}/upload", s.handleViewUpload)
		r.Post("/view/{kind}/clear", s.handleViewClear)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(&s.cfg.Security))

		// SSE streams stay open for the whole upload, so no timeout here.
		r.Get("/upload/{uploadID}/progress", s.handleUploadProgress)

		r.Group(func(r chi.Router) {
			r.Use(timeout)

			r.With(s.uploadRateLimit()).Post("/upload/{kind}", s.handleUpload)
			r.Get("/upload/{uploadID}/result", s.handleUploadResult)
			r.Post("/upload/{uploadID}/cancel", s.handleCancelUpload)
			r.Get("/uploads/status", s.handleUploadsStatus)
			r.Get("/audit", s.handleAuditLog)
			r.Get("/audit/export", s.handleAuditLogExport)

			r.Route("/datasets/{kind}", func(r chi.Router) {
				r.Get("/", s.handleDatasetStatus)
				r.Delete("/", s.handleClearDataset)
				r.Get("/facets", s.handleFacets)
				r.Get("/rows", s.handleRows)
				r.Get("/export", s.handleExport)
				r.Put("/search", s.handleSetSearch)
				r.Post("/filters/toggle", s.handleToggleFilter)
				r.Post("/filters/reset", s.handleResetFilters)
			})
		})
	})
}

// Start listens on the configured address until Shutdown. It returns nil
// after a clean shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr())
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	slog.Info("http server listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for open ones.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.Close()

	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Close stops background goroutines owned by the server.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.limits {
		l.stop()
	}
	s.limits = nil
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if s.cfg.Security.EnableCSP {
			h.Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
