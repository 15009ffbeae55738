// Package api provides the HTTP transport for chat sessions. It is a thin
// wrapper: request/response binding and per-session locking only, with no
// decision logic of its own.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/evihealth/healthnav/internal/flow"
	"github.com/evihealth/healthnav/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

// Server serves the chat API over HTTP.
type Server struct {
	conversation *flow.ConversationFlow
	sessions     *store.SessionStore
	addr         string
}

// Option configures the Server.
type Option func(*Server)

// WithAddr overrides the listen address.
func WithAddr(addr string) Option {
	return func(s *Server) { s.addr = addr }
}

// NewServer creates the HTTP transport around the given conversation flow and
// session registry.
func NewServer(conversation *flow.ConversationFlow, sessions *store.SessionStore, opts ...Option) *Server {
	s := &Server{
		conversation: conversation,
		sessions:     sessions,
		addr:         DefaultAddr,
	}
	for _, opt := range opts {
		opt(s)
	}
	slog.Debug("api.NewServer: created server", "addr", s.addr)
	return s
}

// Routes builds the HTTP router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Post("/chat", s.handleChat)
	return r
}

// Run starts the HTTP server and blocks until it exits.
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("api.Run: starting HTTP server", "addr", s.addr)
	return srv.ListenAndServe()
}
