package api

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiter_PerIPBuckets(t *testing.T) {
	rl := newRateLimiter(1.0, 2)

	if !rl.allow("10.0.0.1") || !rl.allow("10.0.0.1") {
		t.Fatal("requests within burst denied, want allowed")
	}
	if rl.allow("10.0.0.1") {
		t.Error("request past burst allowed, want denied")
	}
	if !rl.allow("10.0.0.2") {
		t.Error("fresh IP denied, want its own bucket")
	}
}

func TestRateLimiter_PrunesIdleBuckets(t *testing.T) {
	now := time.Unix(1700000000, 0)
	rl := newRateLimiter(1.0, 1, withRateClock(func() time.Time { return now }))

	rl.allow("10.0.0.1")

	// Long enough idle for the first IP to be dropped when the next
	// request triggers a prune pass.
	now = now.Add(defaultIdleAfter + time.Minute)
	rl.allow("10.0.0.2")

	if got := rl.size(); got != 1 {
		t.Errorf("tracked IPs = %d, want 1 after pruning the idle bucket", got)
	}
}

func TestRateLimiter_ActiveBucketSurvivesPrune(t *testing.T) {
	now := time.Unix(1700000000, 0)
	rl := newRateLimiter(1.0, 1, withRateClock(func() time.Time { return now }))

	// Exhaust the bucket, then keep the IP active across the prune
	// cadence. The bucket must survive so the denial state holds.
	rl.allow("10.0.0.1")
	now = now.Add(defaultPruneEvery + time.Second)
	if rl.allow("10.0.0.1") {
		t.Error("exhausted bucket allowed after prune pass, want denial preserved")
	}
	if got := rl.size(); got != 1 {
		t.Errorf("tracked IPs = %d, want the active bucket kept", got)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		trustProxy bool
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "remote addr with port",
			remoteAddr: "192.0.2.10:54321",
			want:       "192.0.2.10",
		},
		{
			name:       "proxy headers ignored without trust",
			remoteAddr: "192.0.2.10:54321",
			headers:    map[string]string{"X-Real-IP": "203.0.113.7"},
			want:       "192.0.2.10",
		},
		{
			name:       "real ip honored when trusted",
			trustProxy: true,
			remoteAddr: "192.0.2.10:54321",
			headers:    map[string]string{"X-Real-IP": "203.0.113.7"},
			want:       "203.0.113.7",
		},
		{
			name:       "invalid real ip falls through to forwarded chain",
			trustProxy: true,
			remoteAddr: "192.0.2.10:54321",
			headers: map[string]string{
				"X-Real-IP":       "not-an-ip",
				"X-Forwarded-For": "203.0.113.7, 198.51.100.1",
			},
			want: "203.0.113.7",
		},
		{
			name:       "garbage headers fall back to remote addr",
			trustProxy: true,
			remoteAddr: "192.0.2.10:54321",
			headers: map[string]string{
				"X-Real-IP":       "spoofed",
				"X-Forwarded-For": "also-spoofed",
			},
			want: "192.0.2.10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}

			if got := clientIP(r, tt.trustProxy); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
