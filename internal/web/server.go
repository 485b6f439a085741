// Package web provides the HTTP server of the portal.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/nickoftime/keyvault-spo/internal/web/handlers"
	"github.com/nickoftime/keyvault-spo/internal/web/middleware"
	"github.com/nickoftime/keyvault-spo/pkg/config"
	"github.com/nickoftime/keyvault-spo/ui"
	"github.com/nickoftime/keyvault-spo/web/health"
)

// Server represents the portal's HTTP server.
type Server struct {
	router        chi.Router
	httpServer    *http.Server
	config        *config.Config
	lister        handlers.PostLister
	healthChecker *health.Checker
	logger        *slog.Logger
}

// NewServer creates a new server with the given dependencies.
func NewServer(cfg *config.Config, lister handlers.PostLister, checker *health.Checker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if checker == nil {
		checker = health.NewChecker(health.WebVersion, logger)
	}

	s := &Server{
		config:        cfg,
		lister:        lister,
		healthChecker: checker,
		logger:        logger,
	}

	s.setupRouter()
	s.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// setupRouter configures the router with middleware and routes.
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Correlation)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(middleware.Recovery(s.logger))
	r.Use(middleware.Deadline(s.config.RequestTimeout))

	r.Get("/health", s.healthChecker.Handler())
	r.Handle("/assets/*", http.StripPrefix("/assets/", ui.Handler()))

	pageHandler := handlers.NewPageHandler(s.lister, s.config.ListName, s.logger)
	r.Get("/", pageHandler.Index)
	r.Get("/privacy", pageHandler.Privacy)
	r.Get("/error", pageHandler.Error)

	s.router = r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until the server is shut down. A clean shutdown
// returns nil.
func (s *Server) ListenAndServe() error {
	s.logger.Info("starting web server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down web server")
	return s.httpServer.Shutdown(ctx)
}
