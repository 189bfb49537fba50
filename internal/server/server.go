// Package server wraps the HTTP listener with sane timeouts and graceful
// shutdown.
package server

import (
	"context"
	"net/http"
	"time"

	"cache-engine/internal/common/logging"
)

// Server represents an HTTP server
type Server struct {
	srv *http.Server
	log logging.Logger
}

// New creates a new server instance
func New(handler http.Handler, port string, log logging.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         ":" + port,
			Handler:      handler,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		log: log,
	}
}

// Start starts the server in a background goroutine.
func (s *Server) Start() {
	go func() {
		s.log.Info("HTTP server listening", logging.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("HTTP server failed", err)
		}
	}()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
