package middleware

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

// RateLimiter decides whether the caller identified by key may proceed.
type RateLimiter interface {
	Allow(key string) bool
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedRateLimiter keeps one token bucket per key and forgets keys that
// have been idle for longer than the ttl.
type KeyedRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	ttl      time.Duration
	now      func() time.Time
}

var _ RateLimiter = (*KeyedRateLimiter)(nil)

// NewKeyedRateLimiter allows perSecond events per key with the given
// burst.
func NewKeyedRateLimiter(perSecond, burst int, ttl time.Duration) *KeyedRateLimiter {
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &KeyedRateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (l *KeyedRateLimiter) Allow(key string) bool {
	if key == "" {
		key = "unknown"
	}
	now := l.now()

	l.mu.Lock()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	for k, other := range l.visitors {
		if now.Sub(other.lastSeen) > l.ttl {
			delete(l.visitors, k)
		}
	}
	l.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

// RateLimit rejects requests with 429 once the caller's bucket is
// empty. keyFn picks the bucket; nil uses the client IP.
func RateLimit(l RateLimiter, keyFn func(*fiber.Ctx) string) fiber.Handler {
	if keyFn == nil {
		keyFn = func(c *fiber.Ctx) string { return c.IP() }
	}
	return func(c *fiber.Ctx) error {
		if l.Allow(keyFn(c)) {
			return c.Next()
		}
		c.Set(fiber.HeaderRetryAfter, "1")
		return fiber.NewError(fiber.StatusTooManyRequests, "too many requests")
	}
}
