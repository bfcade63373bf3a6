package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// RateLimitConfig tunes the per-client token buckets.
type RateLimitConfig struct {
	RPS   float64 // sustained requests per second per client
	Burst int     // bucket capacity
}

// normalize fills unset fields with production defaults.
func (cfg RateLimitConfig) normalize() RateLimitConfig {
	if cfg.RPS <= 0 {
		cfg.RPS = 100
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 200
	}
	return cfg
}

// bucket is one client's token bucket. Tokens refill continuously at rate
// per second up to burst.
type bucket struct {
	mu       sync.Mutex
	tokens   float64
	burst    float64
	rate     float64
	lastFill time.Time
	lastSeen time.Time
}

func newBucket(rate float64, burst int, now time.Time) *bucket {
	return &bucket{
		tokens:   float64(burst),
		burst:    float64(burst),
		rate:     rate,
		lastFill: now,
		lastSeen: now,
	}
}

// take refills the bucket for the elapsed time, then consumes one token.
func (b *bucket) take(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens += now.Sub(b.lastFill).Seconds() * b.rate
	if b.tokens > b.burst {
		b.tokens = b.burst
	}
	b.lastFill = now
	b.lastSeen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// wait reports whole seconds until the next token becomes available, at
// least 1.
func (b *bucket) wait() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.rate <= 0 {
		return 1
	}
	return int((1-b.tokens)/b.rate) + 1
}

func (b *bucket) idleSince(now time.Time) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return now.Sub(b.lastSeen)
}

// RateLimiter hands out one bucket per client key (the client IP).
type RateLimiter struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
	cfg     RateLimitConfig
}

func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		cfg:     cfg.normalize(),
	}
}

func (rl *RateLimiter) bucketFor(key string) *bucket {
	rl.mu.RLock()
	b := rl.buckets[key]
	rl.mu.RUnlock()
	if b != nil {
		return b
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if b = rl.buckets[key]; b == nil {
		b = newBucket(rl.cfg.RPS, rl.cfg.Burst, time.Now())
		rl.buckets[key] = b
	}
	return b
}

// StartCleanup drops buckets idle for longer than maxIdle every interval,
// until ctx is cancelled. Run it in its own goroutine.
func (rl *RateLimiter) StartCleanup(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.removeIdle(time.Now(), maxIdle)
		}
	}
}

func (rl *RateLimiter) removeIdle(now time.Time, maxIdle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, b := range rl.buckets {
		if b.idleSince(now) > maxIdle {
			delete(rl.buckets, key)
		}
	}
}

// Middleware rejects clients that exhaust their bucket with 429 and a
// Retry-After hint.
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	limit := strconv.Itoa(rl.cfg.Burst)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			b := rl.bucketFor(c.RealIP())
			if !b.take(time.Now()) {
				h := c.Response().Header()
				h.Set("Retry-After", strconv.Itoa(b.wait()))
				h.Set("X-RateLimit-Limit", limit)
				h.Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}

// RateLimit is a convenience for a limiter without background cleanup.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	return NewRateLimiter(cfg).Middleware()
}
