// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer — it connects handlers, middleware, and
// routes. Think of it as the control centre that decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
// main.go loads config and creates the logger; New() assembles everything
// else: store → services → handlers → routes. This is the "composition root"
// pattern — all dependencies are wired in one place rather than scattered
// across the codebase.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sakif/postforge/internal/auth"
	"github.com/sakif/postforge/internal/config"
	"github.com/sakif/postforge/internal/handler"
	"github.com/sakif/postforge/internal/metrics"
	"github.com/sakif/postforge/internal/middleware"
	"github.com/sakif/postforge/internal/repository"
	postgresRepo "github.com/sakif/postforge/internal/repository/postgres"
	sqliteRepo "github.com/sakif/postforge/internal/repository/sqlite"
	"github.com/sakif/postforge/internal/service"
	"github.com/sakif/postforge/internal/webhook"
)

// store is what the wiring needs from either database backend: the two
// repositories plus a Close for shutdown.
type store struct {
	users  repository.UserRepository
	posts  repository.PostRepository
	closer io.Closer
}

// Server owns the router and every long-lived resource behind it.
//
// RESOURCE MANAGEMENT:
// The Server owns a database connection and the rate limiter's background
// goroutine. Both are released during graceful shutdown in Start().
type Server struct {
	router  *chi.Mux
	cfg     *config.Config
	logger  *slog.Logger
	store   store
	limiter *middleware.RateLimiter
}

// New creates a Server with all dependencies wired.
//
// STORE SELECTION:
// DATABASE_URL set → hosted Postgres (production). Otherwise an embedded
// SQLite file (local development) — its parent directory is created if
// missing. Both backends implement the same repository interfaces, so
// nothing downstream knows which one it got.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	st, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	s := &Server{
		router:  chi.NewRouter(),
		cfg:     cfg,
		logger:  logger,
		store:   st,
		limiter: middleware.NewRateLimiter(cfg.AuthRatePerMinute, logger),
	}

	if err := s.setupRoutes(); err != nil {
		st.closer.Close()
		s.limiter.Stop()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

func openStore(cfg *config.Config) (store, error) {
	if cfg.DatabaseURL != "" {
		db, err := postgresRepo.Open(cfg.DatabaseURL)
		if err != nil {
			return store{}, err
		}
		return store{users: db.Users(), posts: db.Posts(), closer: db}, nil
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return store{}, fmt.Errorf("creating database directory %s: %w", dir, err)
		}
	}
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return store{}, err
	}
	return store{users: db.Users(), posts: db.Posts(), closer: db}, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET  /auth/login        → redirect to LinkedIn authorization
// GET  /auth/callback     → complete OAuth, set session cookie
// GET  /auth/check        → session state (always 200)
// POST /auth/logout       → clear session cookie
// POST /actions/generate  → proxy to the generation workflow (auth)
// POST /actions/publish   → proxy to the publish workflow (auth)
// GET  /actions/posts     → the caller's saved posts (auth)
// GET  /metrics           → Prometheus scrape
//
// MIDDLEWARE ORDER MATTERS:
// Middleware executes in the order it's added:
// 1. RequestID — assigns a unique ID to each request (for tracing)
// 2. RealIP — extracts the real client IP from proxy headers (the rate
//    limiter and logs key on it)
// 3. metrics — records the final status code of every response
// 4. Logger — logs each request with timing info
// 5. Recoverer — catches panics and returns 500 instead of crashing
func (s *Server) setupRoutes() error {
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(metrics.HTTPMiddleware(collector))
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	// === AUTH WIRING ===
	sessions, err := auth.NewSessionService(s.cfg.JWTSecret, s.cfg.SessionTTL)
	if err != nil {
		return fmt.Errorf("creating session service: %w", err)
	}
	provider := auth.NewLinkedInProvider(
		s.cfg.LinkedInClientID,
		s.cfg.LinkedInClientSecret,
		s.cfg.LinkedInRedirectURI,
	)
	authService := service.NewAuthService(s.store.users, sessions, s.cfg, s.logger)
	authService.SetMetrics(collector)
	authHandler := handler.NewAuthHandler(provider, authService, sessions, s.cfg, s.logger)

	// === ACTION WIRING ===
	// The webhook client is wrapped in the metrics decorator, so every
	// outbound call is counted without the client knowing about prometheus.
	hooks := webhook.New(s.cfg.GenerateWebhookURL, s.cfg.PublishWebhookURL, s.cfg.WebhookTimeout, s.logger)
	postService := service.NewPostService(s.store.posts, metrics.InstrumentForwarder(hooks, collector), s.logger)
	postHandler := handler.NewPostHandler(postService, s.logger)

	requireAuth := auth.RequireAuth(sessions, s.logger)

	// The auth endpoints face anonymous traffic, so they get the per-IP
	// rate limiter. Login and callback are browser navigations; check and
	// logout are API calls from the frontend.
	s.router.Route("/auth", func(r chi.Router) {
		r.Use(s.limiter.Middleware())
		r.Get("/login", authHandler.HandleLogin)
		r.Get("/callback", authHandler.HandleCallback)
		r.Get("/check", authHandler.HandleCheck)
		r.Post("/logout", authHandler.HandleLogout)
	})

	// CORS runs BEFORE RequireAuth: a preflight carries no cookies, so the
	// order matters — OPTIONS must be answered without touching auth.
	s.router.Route("/actions", func(r chi.Router) {
		r.Use(middleware.CORS())
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/generate", postHandler.HandleGenerate)
			r.Post("/publish", postHandler.HandlePublish)
			r.Get("/posts", postHandler.HandleList)
		})
	})

	s.router.Method(http.MethodGet, "/metrics", metrics.Handler(registry))

	return nil
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Stop the rate limiter's cleanup goroutine
// 4. Close the database connection (flushes WAL, releases the pool)
func (s *Server) Start() error {
	defer s.store.closer.Close()
	defer s.limiter.Stop()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.cfg.WebhookTimeout + 15*time.Second, // proxied calls may use the full webhook budget
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.cfg.Port)),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give in-flight requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// Router exposes the configured router for tests.
func (s *Server) Router() http.Handler {
	return s.router
}
