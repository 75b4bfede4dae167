// Package core provides the API chassis for the newsletter service: a chi
// router with the cross-cutting middleware chain (recovery, correlation IDs,
// request logging, CORS, admin gating), the standard JSON response envelope,
// and request validation.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"forkfire/internal/config"
)

// RouteRegistrar mounts a group of domain routes onto the router. The
// application entry point populates Server.RouteRegistrars before calling
// MountRoutes; this indirection keeps core free of handler imports.
type RouteRegistrar func(r chi.Router)

// Server encapsulates the HTTP-facing dependencies of the service, allowing
// injection during testing and distinct configuration per environment.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator

	// RouteRegistrars are invoked by MountRoutes to attach domain handlers.
	RouteRegistrars []RouteRegistrar

	// HealthProbes are checked concurrently by the /health endpoint.
	HealthProbes []HealthProbe

	router *chi.Mux
}

// NewServer initializes the chassis and prepares the router for route
// mounting. It fails fast on missing critical dependencies.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the http.Handler for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration in tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// MountRoutes registers the global middleware chain, the domain route
// registrars, and the health endpoint.
//
// Middleware order matters:
//  1. Recoverer      - outermost so every panic is caught
//  2. RequestID      - correlation ID for tracing
//  3. SecurityHeaders
//  4. RequestLogger  - structured logging with redacted headers
//  5. CORS           - the subscribe form posts from the browser
func (s *Server) MountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(SecurityHeadersMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))
	s.router.Use(NewCORSMiddleware(s.Config.Server.CORSAllowedOrigins))

	s.router.Route("/api/newsletter", func(r chi.Router) {
		for _, registrar := range s.RouteRegistrars {
			registrar(r)
		}
	})

	s.router.Get("/health", s.HandleHealth)
}

// Shutdown performs a graceful termination of server-held resources. The
// database pool is owned by main and closed there; this hook exists for
// symmetry and future resource ownership.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown complete")
	return nil
}
