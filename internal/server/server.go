package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mindmate-health/mindmate/internal/ratelimit"
	"github.com/mindmate-health/mindmate/internal/service/accounts"
	"github.com/mindmate-health/mindmate/internal/service/stress"
	"github.com/mindmate-health/mindmate/internal/storage"
)

// Server is the MindMate HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a Server.
// AuthLimiter may be nil to disable login throttling.
type ServerConfig struct {
	Store       storage.Store
	Accounts    *accounts.Service
	Stress      *stress.Service
	AuthLimiter ratelimit.Limiter
	Logger      *slog.Logger

	// HTTP server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	MaxRequestBodyBytes int64
	LegacyStressErrors  bool
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		Store:               cfg.Store,
		Accounts:            cfg.Accounts,
		Stress:              cfg.Stress,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		LegacyStressErrors:  cfg.LegacyStressErrors,
	})

	limiter := cfg.AuthLimiter
	if limiter == nil {
		limiter = ratelimit.NoopLimiter{}
	}
	reqIDFunc := func(r *http.Request) string {
		return RequestIDFromContext(r.Context())
	}
	authRL := ratelimit.Middleware(limiter, ratelimit.IPKeyFunc, reqIDFunc, cfg.Logger)

	mux := http.NewServeMux()

	// Service info (no auth).
	mux.HandleFunc("GET /{$}", h.HandleRoot)
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET /tables", h.HandleTables)

	// User auth (login rate limited by IP).
	mux.Handle("POST /register", authRL(http.HandlerFunc(h.HandleRegister)))
	mux.Handle("POST /login", authRL(http.HandlerFunc(h.HandleLogin)))
	mux.HandleFunc("POST /logout", h.HandleLogout)

	// Admin auth.
	mux.Handle("POST /admin/login", authRL(http.HandlerFunc(h.HandleAdminLogin)))
	mux.HandleFunc("POST /admin/logout", h.HandleLogout)

	// Stress intake and history. Guests may submit, so no session is required.
	mux.HandleFunc("POST /stress", h.HandleStress)
	mux.HandleFunc("GET /stress/history", h.HandleStressHistory)
	mux.HandleFunc("DELETE /stress/history/delete/{id}", h.HandleDeleteStress)

	// Public feedback and content.
	mux.HandleFunc("POST /feedback", h.HandleCreateFeedback)
	mux.HandleFunc("GET /feedback", h.HandleListFeedback)
	mux.HandleFunc("GET /exercises", h.HandleListContent)
	mux.HandleFunc("GET /diets", h.HandleListContent)
	mux.HandleFunc("GET /videos", h.HandleListContent)

	// Admin dashboard.
	mux.Handle("GET /admin/users", requireAdmin(http.HandlerFunc(h.HandleAdminListUsers)))
	mux.Handle("DELETE /admin/users/{id}", requireAdmin(http.HandlerFunc(h.HandleAdminDeleteUser)))
	mux.Handle("GET /admin/feedbacks", requireAdmin(http.HandlerFunc(h.HandleListFeedback)))
	mux.Handle("DELETE /admin/feedbacks/{id}", requireAdmin(http.HandlerFunc(h.HandleAdminDeleteFeedback)))
	mux.Handle("POST /admin/{kind}", requireAdmin(http.HandlerFunc(h.HandleAdminCreateContent)))
	mux.Handle("DELETE /admin/{kind}/{id}", requireAdmin(http.HandlerFunc(h.HandleAdminDeleteContent)))
	mux.Handle("GET /admin/analytics/users", requireAdmin(http.HandlerFunc(h.HandleAdminAnalytics)))
	mux.Handle("GET /admin/export/stress", requireAdmin(http.HandlerFunc(h.HandleAdminExportStress)))

	// Middleware chain (outermost executes first):
	// request ID → security headers → tracing → logging → session → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = sessionMiddleware(cfg.Accounts, cfg.Logger, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      cfg.WriteTimeout,
		},
		handler: handler,
		logger:  cfg.Logger,
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
