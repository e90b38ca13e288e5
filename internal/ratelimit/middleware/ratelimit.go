// Package middleware throttles the admin HTTP API per client address with a
// token bucket. Verification starts are limited separately by the service.
package middleware

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"warden/pkg/platform/httputil"
	metadata "warden/pkg/platform/middleware/metadata"
)

const defaultIdleTTL = 10 * time.Minute

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type Middleware struct {
	mu       sync.Mutex
	clients  map[string]*client
	rps      rate.Limit
	burst    int
	idleTTL  time.Duration
	logger   *slog.Logger
	disabled bool
	now      func() time.Time
}

type Option func(*Middleware)

// WithDisabled disables rate limiting entirely (for testing/demo mode).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

// WithIdleTTL sets how long an idle client's bucket is kept.
func WithIdleTTL(d time.Duration) Option {
	return func(m *Middleware) {
		if d > 0 {
			m.idleTTL = d
		}
	}
}

func New(rps float64, burst int, logger *slog.Logger, opts ...Option) *Middleware {
	if burst <= 0 {
		burst = 1
	}
	m := &Middleware{
		clients: make(map[string]*client),
		rps:     rate.Limit(rps),
		burst:   burst,
		idleTTL: defaultIdleTTL,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimit rejects a client with 429 once its bucket is empty.
func (m *Middleware) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.disabled {
			next.ServeHTTP(w, r)
			return
		}

		ip := metadata.GetClientIP(r.Context())
		if ip == "" {
			ip = metadata.ClientIPFromRequest(r)
		}
		limiter := m.limiterFor(ip)
		reservation := limiter.ReserveN(m.now(), 1)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.burst))

		if delay := reservation.DelayFrom(m.now()); delay > 0 {
			reservation.CancelAt(m.now())
			retryAfter := int(math.Ceil(delay.Seconds()))
			m.logger.WarnContext(r.Context(), "admin api rate limit exceeded", "retry_after", retryAfter)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			httputil.WriteJSON(w, http.StatusTooManyRequests, map[string]any{
				"error":             "rate_limit_exceeded",
				"error_description": "Too many requests from this address. Please try again later.",
				"retry_after":       retryAfter,
			})
			return
		}
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.TokensAt(m.now()))))
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) limiterFor(ip string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	c, ok := m.clients[ip]
	if !ok {
		c = &client{limiter: rate.NewLimiter(m.rps, m.burst)}
		m.clients[ip] = c
	}
	c.lastSeen = now
	return c.limiter
}

// Sweep drops buckets idle for longer than the idle TTL and returns how many
// were dropped.
func (m *Middleware) Sweep(context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-m.idleTTL)
	removed := 0
	for ip, c := range m.clients {
		if c.lastSeen.Before(cutoff) {
			delete(m.clients, ip)
			removed++
		}
	}
	return removed
}
