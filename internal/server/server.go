// Package server provides the HTTP server and routing.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"oddogate/internal/config"
	"oddogate/internal/modules/accounts"
	"oddogate/internal/modules/auth"
	"oddogate/internal/modules/cache"
	"oddogate/internal/modules/portfolio"
)

// Deps carries the wired services the router exposes.
type Deps struct {
	Log              zerolog.Logger
	Config           *config.Config
	AuthService      *auth.Service
	AuthHandler      *auth.Handler
	AccountsHandler  *accounts.Handler
	CacheHandler     *cache.Handler
	PortfolioHandler *portfolio.Handler
	SystemHandlers   *SystemHandlers
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	deps   Deps
}

// New creates a new HTTP server
func New(deps Deps) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    deps.Log.With().Str("component", "server").Logger(),
		deps:   deps,
	}

	s.setupMiddleware()
	s.setupRoutes()

	cfg := deps.Config.Server
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Trailing-slash requests redirect to the canonical path
	s.router.Use(middleware.RedirectSlashes)

	// Timeout
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Public routes
	s.router.Get("/status", s.deps.SystemHandlers.HandleStatus)
	s.router.Post("/login", s.deps.AuthHandler.HandleLogin)

	// Authenticated routes
	s.router.Group(func(r chi.Router) {
		r.Use(s.deps.AuthService.Middleware)

		r.Get("/accounts", s.deps.AccountsHandler.HandleGetAccounts)
		r.Get("/portfolio/overview", s.deps.PortfolioHandler.HandleOverview)

		r.Get("/cache/info", s.deps.CacheHandler.HandleInfo)
		r.Delete("/cache", s.deps.CacheHandler.HandleInvalidate)
		r.Post("/cache/refresh", s.deps.CacheHandler.HandleRefresh)

		r.Get("/system/disk", s.deps.SystemHandlers.HandleDiskUsage)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
