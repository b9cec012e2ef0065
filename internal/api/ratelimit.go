package api

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Defaults for pruning idle per-IP buckets. Pruning happens inline on
// the request path, so the limiter needs no background goroutine.
const (
	defaultPruneEvery = 5 * time.Minute
	defaultIdleAfter  = 10 * time.Minute
)

// rateLimiter keeps a token bucket per client IP. Buckets for IPs
// that have gone idle are pruned during allow so the map cannot grow
// without bound under churning clients.
type rateLimiter struct {
	limit rate.Limit
	burst int

	pruneEvery time.Duration
	idleAfter  time.Duration
	now        func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastPrune time.Time
}

// bucket pairs a limiter with the time its IP was last seen.
type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiterOption func(*rateLimiter)

// withRateClock substitutes the time source. Tests use this to age
// buckets without sleeping.
func withRateClock(now func() time.Time) rateLimiterOption {
	return func(rl *rateLimiter) { rl.now = now }
}

// newRateLimiter creates a limiter that refills r tokens per second
// with the given burst, independently per IP.
func newRateLimiter(r float64, burst int, opts ...rateLimiterOption) *rateLimiter {
	rl := &rateLimiter{
		limit:      rate.Limit(r),
		burst:      burst,
		pruneEvery: defaultPruneEvery,
		idleAfter:  defaultIdleAfter,
		now:        time.Now,
		buckets:    make(map[string]*bucket),
	}
	for _, opt := range opts {
		opt(rl)
	}
	rl.lastPrune = rl.now()
	return rl
}

// allow takes a token from the bucket for ip, creating the bucket on
// first sight.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastPrune) > rl.pruneEvery {
		rl.prune(now)
	}

	b, ok := rl.buckets[ip]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[ip] = b
	}
	b.lastSeen = now
	return b.limiter.Allow()
}

// prune drops buckets idle past the threshold. Caller holds rl.mu.
func (rl *rateLimiter) prune(now time.Time) {
	for ip, b := range rl.buckets {
		if now.Sub(b.lastSeen) > rl.idleAfter {
			delete(rl.buckets, ip)
		}
	}
	rl.lastPrune = now
}

// size reports the tracked IP count.
func (rl *rateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// rateLimitMiddleware rejects requests from IPs that have exhausted
// their token bucket with 429 and a Retry-After hint.
func rateLimitMiddleware(rl *rateLimiter, trustProxy bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r, trustProxy)
			if !rl.allow(ip) {
				logger.Warn("rate limit exceeded",
					"ip", ip,
					"path", r.URL.Path,
					"method", r.Method,
				)
				w.Header().Set("Retry-After", "1")
				WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP picks the address the limiter keys on. Proxy headers are
// honored only when trustProxy is set, and only when they parse as an
// IP, so clients cannot mint arbitrary bucket keys. Without a proxy
// the connection's RemoteAddr is the only trustworthy source.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := parseForwarded(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
		// X-Forwarded-For may carry a chain; the first hop is the client.
		xff := r.Header.Get("X-Forwarded-For")
		if first, _, ok := strings.Cut(xff, ","); ok {
			xff = first
		}
		if ip := parseForwarded(xff); ip != "" {
			return ip
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// parseForwarded validates a proxy-supplied address, returning "" when
// it is absent or not an IP.
func parseForwarded(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	ip := net.ParseIP(raw)
	if ip == nil {
		return ""
	}
	return ip.String()
}
