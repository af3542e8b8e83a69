// Package server owns the HTTP listener and the middleware stack shared by
// every gateway route.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Server struct {
	Router *chi.Mux
	port   int
	logger *slog.Logger
	http   *http.Server
}

// New builds the router with the gateway's middleware stack applied in
// order: request ids, structured request logging, the request timeout, and
// panic recovery, all wrapped with OpenTelemetry HTTP instrumentation.
func New(port int, requestTimeout time.Duration, logger *slog.Logger) *Server {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(TimeoutMiddleware(requestTimeout))
	r.Use(RecoverMiddleware(logger))

	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "docqa-gateway")
	})

	return &Server{
		Router: r,
		port:   port,
		logger: logger,
		http: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start blocks serving requests until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.logger.Info("starting server", slog.Int("port", s.port))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the context's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
