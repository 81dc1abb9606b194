package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// IngressLimiter is a per-client token bucket for inbound tool calls.
// Clients are keyed by remote IP; idle buckets are dropped by Cleanup.
type IngressLimiter struct {
	mu      sync.Mutex
	entries map[string]*ingressEntry
	rps     rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
}

type ingressEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewIngressLimiter returns nil when rps is not positive, which disables limiting.
func NewIngressLimiter(rps float64, burst int) *IngressLimiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &IngressLimiter{
		entries: make(map[string]*ingressEntry),
		rps:     rate.Limit(rps),
		burst:   burst,
		idleTTL: 15 * time.Minute,
		now:     time.Now,
	}
}

// Allow reports whether key may proceed now.
func (l *IngressLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	return l.limiter(key).AllowN(l.now(), 1)
}

func (l *IngressLimiter) limiter(key string) *rate.Limiter {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if ent, ok := l.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(l.rps, l.burst)
	l.entries[key] = &ingressEntry{lim: lim, lastSeen: now}
	return lim
}

// Cleanup forgets clients idle for longer than the idle TTL.
func (l *IngressLimiter) Cleanup() {
	if l == nil {
		return
	}
	cutoff := l.now().Add(-l.idleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, ent := range l.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(l.entries, key)
		}
	}
}

// StartJanitor runs Cleanup every interval until ctx is done.
func (l *IngressLimiter) StartJanitor(ctx context.Context, interval time.Duration) {
	if l == nil || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Cleanup()
			}
		}
	}()
}

// Middleware rejects over-limit requests through reject, after setting Retry-After.
func (l *IngressLimiter) Middleware(reject func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.Allow(clientKey(r)) {
				next.ServeHTTP(w, r)
				return
			}

			retry := time.Duration(float64(time.Second) / float64(l.rps))
			w.Header().Set("Retry-After", strconv.Itoa(int(retry.Round(time.Second)/time.Second)+1))
			reject(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
