package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL = 15 * time.Minute
	maxRetryAfter  = time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Throttler limits auth submissions per client address. The console cookie
// is not a key: a client can drop it at will.
type Throttler struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*clientLimiter
	sweptAt  time.Time
}

// NewThrottler allows perSecond submissions per client with the given burst.
func NewThrottler(perSecond float64, burst int) *Throttler {
	if burst <= 0 {
		burst = 1
	}
	return &Throttler{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[string]*clientLimiter),
		sweptAt:  time.Now(),
	}
}

// Middleware answers 429 with Retry-After once a client exceeds its budget.
// The address comes from the Echo instance's IPExtractor.
func (t *Throttler) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			r := t.limiterFor(c.RealIP()).Reserve()
			if delay := r.Delay(); !r.OK() || delay > 0 {
				r.Cancel()
				secs := int(math.Ceil(min(delay, maxRetryAfter).Seconds()))
				c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "too many attempts, try again shortly"})
			}
			return next(c)
		}
	}
}

func (t *Throttler) limiterFor(key string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	if now.Sub(t.sweptAt) > limiterIdleTTL {
		for k, l := range t.limiters {
			if now.Sub(l.lastSeen) > limiterIdleTTL {
				delete(t.limiters, k)
			}
		}
		t.sweptAt = now
	}

	l, ok := t.limiters[key]
	if !ok {
		l = &clientLimiter{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.limiters[key] = l
	}
	l.lastSeen = now
	return l.limiter
}
