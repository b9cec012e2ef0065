// Package session tracks live conversation sessions in memory.
//
// A session is an opaque identifier plus a last-activity timestamp.
// The Registry owns the map exclusively; the HTTP layer reads and
// writes only through Touch, Remove and Count. A background sweep
// evicts sessions that have been idle longer than the TTL.
//
// Registry is safe for concurrent use by multiple goroutines.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry is the process-wide session table.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]time.Time

	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source. Test use only.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates a registry with the given inactivity TTL and
// sweep interval. A nil logger falls back to slog.Default().
func NewRegistry(ttl, interval time.Duration, logger *slog.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{
		sessions: make(map[string]time.Time),
		ttl:      ttl,
		interval: interval,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Touch records activity for a session. An empty or unknown id mints
// a fresh identifier; a known id keeps its identifier and refreshes
// the last-activity timestamp. The returned id is always live.
func (r *Registry) Touch(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id != "" {
		if _, ok := r.sessions[id]; ok {
			r.sessions[id] = r.now()
			return id
		}
	}

	id = uuid.NewString()
	r.sessions[id] = r.now()
	r.logger.Debug("session created", "session_id", id)
	return id
}

// Remove deletes a session if present and reports whether it existed.
// Safe to call repeatedly with the same id.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	r.logger.Debug("session removed", "session_id", id)
	return true
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// LastSeen returns a session's last-activity time. Diagnostics and
// tests; the second result reports presence.
func (r *Registry) LastSeen(id string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.sessions[id]
	return t, ok
}

// Run sweeps expired sessions on a fixed interval until ctx is
// canceled. Intended to run as a single background goroutine.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.sweep(); n > 0 {
				r.logger.Info("swept expired sessions", "count", n, "remaining", r.Count())
			}
		}
	}
}

// sweep removes sessions idle longer than the TTL and returns how many
// were evicted. Holds the lock for a single pass over the map.
func (r *Registry) sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	evicted := 0
	for id, lastSeen := range r.sessions {
		if now.Sub(lastSeen) > r.ttl {
			delete(r.sessions, id)
			evicted++
		}
	}
	return evicted
}
