// Package api exposes the operator-facing HTTP surface: the admin publish
// form, the JSON operations API and the OAuth login flow.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ignite/newsletter/internal/auth"
	"github.com/ignite/newsletter/internal/config"
)

// Server wraps the HTTP server lifecycle around the route tree.
type Server struct {
	cfg     config.ServerConfig
	handler http.Handler
	server  *http.Server
}

// NewServer creates a server from wired handlers. authManager may be nil
// for tests that exercise handlers directly.
func NewServer(cfg config.ServerConfig, h *Handlers, authManager *auth.Manager) *Server {
	return &Server{
		cfg:     cfg,
		handler: SetupRoutes(h, authManager),
	}
}

// ListenAndServe starts the HTTP server on addr and blocks.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.handler
}
