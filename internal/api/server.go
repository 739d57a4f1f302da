// Package api is the HTTP surface of the notification engine
package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/foxzi/alumnet/internal/config"
	"github.com/foxzi/alumnet/internal/mailer"
	"github.com/foxzi/alumnet/internal/metrics"
	"github.com/foxzi/alumnet/internal/notify"
)

// Server is the HTTP API server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	notify     *notify.Service
	auth       *authenticator
	captures   *mailer.CaptureStore
	config     config.ServerConfig
	version    string
	logger     *slog.Logger
	startTime  time.Time
}

// NewServer creates a new API server
func NewServer(svc *notify.Service, cfg config.ServerConfig, admins []config.AdminConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		router:    chi.NewRouter(),
		notify:    svc,
		auth:      newAuthenticator(admins),
		config:    cfg,
		version:   "dev",
		logger:    logger.With("component", "api"),
		startTime: time.Now(),
	}

	s.setupRoutes()
	return s
}

// SetCaptureStore exposes sandbox captures under /api/v1/sandbox
func (s *Server) SetCaptureStore(store *mailer.CaptureStore) {
	s.captures = store
}

// SetVersion sets the version reported by /health
func (s *Server) SetVersion(v string) {
	s.version = v
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(metrics.HTTPMiddleware)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Post("/notifications", s.handleNotify)
		r.Post("/broadcasts", s.handleBroadcast)
		r.Post("/audience/count", s.handleAudienceCount)

		r.Get("/campaigns/{id}/progress", s.handleProgress)
		r.Get("/dispatches/{id}", s.handleReport)
		r.Get("/dispatches/{id}/export.csv", s.handleExport)

		r.Get("/drafts", s.handleGetDraft)
		r.Put("/drafts", s.handleSaveDraft)

		r.Route("/sandbox", func(r chi.Router) {
			r.Get("/messages", s.handleSandboxList)
			r.Get("/messages/{id}", s.handleSandboxGet)
			r.Get("/messages/{id}/raw", s.handleSandboxRaw)
			r.Delete("/messages", s.handleSandboxClear)
		})
	})
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	s.logger.Info("starting HTTP API server", "addr", s.config.ListenAddr, "tls", s.config.TLS.Enabled)
	if s.config.TLS.Enabled {
		return s.httpServer.ListenAndServeTLS(s.config.TLS.CertFile, s.config.TLS.KeyFile)
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP API server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
