package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

type visitor struct {
	lim  *rate.Limiter
	seen time.Time
}

// KeyedLimiter keeps one token bucket per key. Idle keys are evicted lazily.
type KeyedLimiter struct {
	mu    sync.Mutex
	m     map[string]*visitor
	every rate.Limit
	burst int
	idle  time.Duration
	now   func() time.Time
}

// NewKeyedLimiter allows perMinute events per key with the given burst.
func NewKeyedLimiter(perMinute float64, burst int) *KeyedLimiter {
	return &KeyedLimiter{
		m:     make(map[string]*visitor),
		every: rate.Limit(perMinute / 60),
		burst: burst,
		idle:  10 * time.Minute,
		now:   time.Now,
	}
}

// Allow consumes one token for key.
func (k *KeyedLimiter) Allow(key string) bool {
	now := k.now()
	k.mu.Lock()
	defer k.mu.Unlock()
	v, ok := k.m[key]
	if !ok {
		if len(k.m) > 1024 {
			k.evict(now)
		}
		v = &visitor{lim: rate.NewLimiter(k.every, k.burst)}
		k.m[key] = v
	}
	v.seen = now
	return v.lim.AllowN(now, 1)
}

func (k *KeyedLimiter) evict(now time.Time) {
	for key, v := range k.m {
		if now.Sub(v.seen) > k.idle {
			delete(k.m, key)
		}
	}
}

// RateLimit rejects requests over the per-client budget with 429.
func RateLimit(k *KeyedLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !k.Allow(c.RealIP()) {
				return c.JSON(http.StatusTooManyRequests, map[string]any{
					"status":  http.StatusTooManyRequests,
					"message": "Too Many Requests",
					"data":    []map[string]string{{"code": "ERR_RATE_LIMITED", "message": "sweep budget exhausted, retry later"}},
				})
			}
			return next(c)
		}
	}
}
