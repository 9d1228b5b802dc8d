// Package server exposes the session engine over HTTP and WebSocket. It is
// a thin CRUD-style layer: all scheduling and lifecycle decisions live in
// the session package.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/voidreach/cadence/session"
)

// Server is the cadence HTTP server.
type Server struct {
	engine     *session.Engine
	hub        *Hub
	logger     *zap.SugaredLogger
	httpServer *http.Server
}

// NewServer creates a server for the given engine and wires the WebSocket
// hub in as the engine's lifecycle event broadcaster.
func NewServer(engine *session.Engine, host string, port int, log *zap.SugaredLogger) *Server {
	s := &Server{
		engine: engine,
		hub:    NewHub(log),
		logger: log,
	}
	engine.SetBroadcaster(s.hub)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// routes configures all HTTP handlers
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.HandleHealth)
	mux.HandleFunc("/api/sessions", s.HandleSessions)          // List/create sessions (GET/POST)
	mux.HandleFunc("/api/sessions/search", s.HandleSearch)     // Substring search (GET)
	mux.HandleFunc("/api/sessions/{id}", s.HandleSession)      // Individual session (GET/DELETE)
	mux.HandleFunc("/api/groups/{key}", s.HandleGroupSessions) // Sessions by group key (GET)
	mux.HandleFunc("/ws", s.hub.HandleWebSocket)               // Lifecycle event stream

	return mux
}

// Handler returns the configured route handler. Used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.hub.Start()
	s.logger.Infow("HTTP server listening", "addr", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting connections, drains in-flight requests and
// closes the WebSocket hub.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.hub.Stop()
	s.logger.Infow("HTTP server stopped")
	return err
}

// HandleHealth reports liveness and the current session count.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"sessions": s.engine.Store().Len(),
	})
}
