package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/foliodev/folio/internal/handler"
	"github.com/foliodev/folio/internal/server/middleware"
	"github.com/foliodev/folio/internal/service"
	"github.com/foliodev/folio/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	MaxBodySize     int64 // bytes
	// AuthRateLimit caps requests per minute per client IP and endpoint on
	// /api/auth/*. Zero disables throttling.
	AuthRateLimit int
	Version       string
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ShutdownTimeout: 15 * time.Second,
		CORSOrigins:     []string{"*"},
		MaxBodySize:     1 << 20, // 1MB
	}
}

// Server is the top-level HTTP server for folio. It owns the Chi router,
// the store, and the auth and content services.
type Server struct {
	cfg        Config
	router     chi.Router
	store      *store.Store
	authSvc    *service.AuthService
	contentSvc *service.ContentService
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, st *store.Store, authSvc *service.AuthService, contentSvc *service.ContentService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		cfg:        cfg,
		store:      st,
		authSvc:    authSvc,
		contentSvc: contentSvc,
		logger:     logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	// An empty origin list means no CORS headers at all; cors.Handler would
	// treat it as "*".
	if len(s.cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
	r.Use(chimw.Compress(5))
	if s.cfg.MaxBodySize > 0 {
		r.Use(chimw.RequestSize(s.cfg.MaxBodySize))
	}

	// --- Health checks (no auth required) ---
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	// --- OpenAPI description (no auth required) ---
	r.Get("/openapi.json", handler.NewOpenAPIHandler(s.cfg.Version).ServeSpec)

	authHandler := handler.NewAuthHandler(s.authSvc, s.logger)
	contentHandler := handler.NewContentHandler(s.contentSvc, s.logger)

	// --- API routes ---
	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			if s.cfg.AuthRateLimit > 0 {
				r.Use(middleware.RateLimit(s.cfg.AuthRateLimit))
			}

			r.Post("/check-email", authHandler.CheckEmail)
			r.Post("/login", authHandler.Login)
			r.Post("/register", authHandler.Register)
			r.Post("/send-otp", authHandler.SendOTP)
			r.Post("/verify-otp", authHandler.VerifyOTP)

			// Tokens are stateless; logout only acknowledges.
			r.Delete("/session", authHandler.Logout)
			r.With(middleware.Authenticate(s.authSvc)).Get("/session", authHandler.Session)
		})

		// Content reads are public.
		r.Get("/content", contentHandler.List)
		r.Get("/content/{type}", contentHandler.Get)
		r.Get("/content/", contentHandler.MissingType)
		r.Put("/content/", contentHandler.MissingType)
		r.Post("/content/", contentHandler.MissingType)

		// Content writes require a bearer token.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(s.authSvc))
			r.Put("/content/{type}", contentHandler.Put)
			r.Post("/content/{type}", contentHandler.Put)
		})
	})

	s.router = r
}

// handleHealthz is a liveness probe. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz is a readiness probe. Returns 200 when the store answers a
// ping, or 503 otherwise.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK
	checks := map[string]string{"database": "ok"}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Error("readiness check failed", "error", err)
		checks["database"] = "unreachable"
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Start server in background goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		s.store.Close()
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	if err := s.store.Close(); err != nil {
		s.logger.Error("close store", "error", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
