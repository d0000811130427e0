package router

import (
	"net/http"
	"sync"
	"time"

	"github.com/shandysiswandi/govault/internal/pkg/config"
	"golang.org/x/time/rate"
)

const rateLimitIdleTTL = 5 * time.Minute

type ipBucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// ipLimiter is a token bucket per client address. Idle buckets are dropped
// while serving requests, so no janitor goroutine is needed.
type ipLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*ipBucket
	perSecond rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

func newIPLimiter(perSecond float64, burst int) *ipLimiter {
	return &ipLimiter{
		buckets:   map[string]*ipBucket{},
		perSecond: rate.Limit(perSecond),
		burst:     burst,
		now:       time.Now,
	}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > rateLimitIdleTTL {
		for k, b := range l.buckets {
			if now.Sub(b.seen) > rateLimitIdleTTL {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[ip]
	if !ok {
		b = &ipBucket{lim: rate.NewLimiter(l.perSecond, l.burst)}
		l.buckets[ip] = b
	}
	b.seen = now

	return b.lim.AllowN(now, 1)
}

// middlewareRateLimit throttles every route per client IP when
// app.server.rate_limit.enabled is set. It runs after middlewareIP.
func middlewareRateLimit(cfg config.Config) Middleware {
	if cfg == nil || !cfg.GetBool("app.server.rate_limit.enabled") {
		return func(next http.Handler) http.Handler { return next }
	}

	perSecond := cfg.GetFloat64("app.server.rate_limit.per_second")
	if perSecond <= 0 {
		perSecond = 20
	}
	burst := cfg.GetInt("app.server.rate_limit.burst")
	if burst <= 0 {
		burst = 40
	}
	limiter := newIPLimiter(perSecond, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := r.RemoteAddr
			if ip == "" {
				ip = "unknown"
			}
			if !limiter.allow(ip) {
				w.Header().Set("Retry-After", "1")
				deny(w, http.StatusTooManyRequests, "Too many requests", "rate_limited")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
