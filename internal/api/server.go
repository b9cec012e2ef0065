// Package api is the HTTP boundary: request validation, session
// touch, agent dispatch, and SSE framing for the streaming path.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger      *slog.Logger
	Runner      Runner                          // Required
	Sessions    Sessions                        // Required
	Probe       func(ctx context.Context) error // Optional: completion backend probe for /health/detailed
	Version     string                          // Reported on /health/detailed and /agent-card
	CORSOrigins []string                        // Allowed origins for CORS
	TrustProxy  bool                            // Trust X-Real-IP/X-Forwarded-For headers (behind reverse proxy)
	RateBurst   int                             // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux      *http.ServeMux
	runner   Runner
	sessions Sessions
	probe    func(ctx context.Context) error
	version  string
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Runner == nil {
		return nil, errors.New("runner is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session registry is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	probe := cfg.Probe
	if probe == nil {
		probe = func(context.Context) error { return nil }
	}

	s := &Server{
		runner:   cfg.Runner,
		sessions: cfg.Sessions,
		probe:    probe,
		version:  cfg.Version,
	}

	ch := &chatHandler{runner: cfg.Runner, sessions: cfg.Sessions, logger: logger}
	sh := &sessionHandler{sessions: cfg.Sessions, logger: logger}

	mux := http.NewServeMux()

	// Chat
	mux.HandleFunc("POST /api/chat/message", ch.message)
	mux.HandleFunc("POST /api/chat/stream", ch.stream)

	// Sessions
	mux.HandleFunc("GET /api/chat/sessions", sh.count)
	mux.HandleFunc("DELETE /api/chat/sessions/{id}", sh.remove)

	// Rate limiter: per-IP token bucket (1 token/sec refill)
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID must be before Logging so request_id is available in log attributes.
	// CORS must be before RateLimit so preflight OPTIONS gets proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Use a top-level mux to keep health probes and the static agent
	// card out of the middleware stack
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", s.health)
	topMux.HandleFunc("GET /health/detailed", s.detailedHealth)
	topMux.HandleFunc("GET /agent-card", s.card)
	topMux.Handle("/", handler)

	s.mux = topMux
	return s, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
