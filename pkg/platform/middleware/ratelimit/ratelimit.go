// Package ratelimit throttles API callers with one token bucket per caller.
// Callers are keyed by authenticated actor, or by client IP before auth.
package ratelimit

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"regassist/pkg/platform/httputil"
	"regassist/pkg/requestcontext"
)

const defaultIdleTTL = 10 * time.Minute

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Middleware holds the per-caller buckets.
type Middleware struct {
	limit  rate.Limit
	burst  int
	idle   time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	callers  map[string]*entry
	lastScan time.Time
}

type Option func(*Middleware)

// WithIdleTTL sets how long an unused bucket is kept.
func WithIdleTTL(d time.Duration) Option {
	return func(m *Middleware) {
		if d > 0 {
			m.idle = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Middleware) {
		m.now = now
	}
}

// New allows each caller perSecond requests with the given burst.
func New(perSecond float64, burst int, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		limit:   rate.Limit(perSecond),
		burst:   max(burst, 1),
		idle:    defaultIdleTTL,
		logger:  logger,
		now:     time.Now,
		callers: map[string]*entry{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handler rejects requests over the caller's rate with 429.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		key := callerKey(r)
		now := m.now()

		res := m.reserve(key, now)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.burst))
		if delay := res.DelayFrom(now); delay > 0 {
			res.CancelAt(now)
			retryAfter := int(math.Ceil(delay.Seconds()))
			m.logger.WarnContext(ctx, "rate limit exceeded",
				"caller", key,
				"retry_after", retryAfter,
				"request_id", requestcontext.RequestID(ctx),
			)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			httputil.WriteJSON(w, http.StatusTooManyRequests, map[string]any{
				"error":       "rate_limit_exceeded",
				"message":     "Too many requests. Please try again later.",
				"retry_after": retryAfter,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) reserve(key string, now time.Time) *rate.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()

	if now.Sub(m.lastScan) > m.idle {
		for k, e := range m.callers {
			if now.Sub(e.lastSeen) > m.idle {
				delete(m.callers, k)
			}
		}
		m.lastScan = now
	}

	e, ok := m.callers[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(m.limit, m.burst)}
		m.callers[key] = e
	}
	e.lastSeen = now
	return e.limiter.ReserveN(now, 1)
}

// Callers returns the number of tracked buckets.
func (m *Middleware) Callers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.callers)
}

func callerKey(r *http.Request) string {
	if auth := requestcontext.Authorization(r.Context()); auth.Actor != requestcontext.SystemActor {
		return "actor:" + auth.Actor
	}
	if ip := requestcontext.ClientIP(r.Context()); ip != "" {
		return "ip:" + ip
	}
	return "ip:" + r.RemoteAddr
}
