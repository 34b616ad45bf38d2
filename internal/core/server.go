// Package core provides the API chassis for the TripGenie notification
// service: a chi router with request correlation, structured request logging,
// panic recovery, and consistent JSON response envelopes.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Server bundles the router with the dependencies the chassis itself needs.
// Domain handlers are mounted by the caller via Router().
type Server struct {
	Logger *slog.Logger

	pool   *pgxpool.Pool
	router *chi.Mux
}

// NewServer builds the middleware chain and the /health endpoint. The pool is
// used only for health checks and may be nil in tests.
func NewServer(logger *slog.Logger, pool *pgxpool.Pool) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		Logger: logger,
		pool:   pool,
		router: chi.NewRouter(),
	}

	s.router.Use(Recoverer(logger))
	s.router.Use(RequestID)
	s.router.Use(RequestLogger(logger))

	s.router.Get("/health", s.handleHealth)

	return s
}

// Handler returns the http.Handler for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// handleHealth reports process liveness and database reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK

	if s.pool != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.pool.Ping(ctx); err != nil {
			s.Logger.ErrorContext(r.Context(), "health check database ping failed", "error", err)
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	JSON(w, r, code, APIResponse{Data: map[string]string{"status": status}})
}

// Shutdown releases server-held resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")
	if s.pool != nil {
		s.pool.Close()
	}
	s.Logger.Info("server shutdown complete")
	return nil
}

// ListenAndServe runs the HTTP server until ctx is cancelled, then drains
// in-flight requests with the given grace period.
func (s *Server) ListenAndServe(ctx context.Context, addr string, grace time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
