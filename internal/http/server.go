// Package http hosts the dashboard API: the http.Server lifecycle and the
// middleware chain shared by every route.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/parsascontentcorner/guilddash/internal/config"
)

// Server wraps the HTTP server
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer creates a new HTTP server serving handler behind the standard
// middleware chain: request IDs, panic recovery, access logging and CORS.
func NewServer(handler http.Handler, cfg *config.ServerConfig, logger *zap.Logger) *Server {
	chain := Chain(handler,
		RequestID(logger),
		Recover(logger),
		AccessLog(),
		CORS(cfg.AllowedOrigins),
	)

	httpServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, cfg.HTTPPort),
		Handler:           chain,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("HTTP server configured",
		zap.String("address", httpServer.Addr),
		zap.Strings("allowed_origins", cfg.AllowedOrigins),
	)

	return &Server{
		httpServer: httpServer,
		logger:     logger,
	}
}

// Handler returns the fully wrapped handler, for use with httptest.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Serve starts the HTTP server
func (s *Server) Serve() error {
	s.logger.Info("starting HTTP server", zap.String("address", s.httpServer.Addr))

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve HTTP: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	return nil
}
