// ratelimit.go provides Gin middleware that enforces per-client rate limits,
// returning 429 responses when the configured requests-per-minute threshold is
// exceeded.
//
// Two limiter backends exist. The Redis-backed limiter (GCRA via redis_rate)
// gives a single shared budget across all replicas and is the one production
// deployments should run. The in-memory token bucket is the fallback for
// deployments without Redis; its budgets are per process.
package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// RequestsPerMinute is the maximum number of requests allowed per minute
	RequestsPerMinute int
	// BurstSize is the maximum burst of requests allowed
	BurstSize int
	// CleanupInterval is how often the in-memory limiter drops idle entries
	CleanupInterval time.Duration
}

// DefaultRateLimitConfig returns sensible defaults
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 200, // Higher limit for authenticated API usage
		BurstSize:         50,  // Allow burst for pages that load multiple resources
		CleanupInterval:   5 * time.Minute,
	}
}

// AuthRateLimitConfig returns stricter limits for login endpoints
func AuthRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 10, // 10 login attempts per minute
		BurstSize:         5,
		CleanupInterval:   5 * time.Minute,
	}
}

// Limiter is the backend behind RateLimitMiddleware.
type Limiter interface {
	// Allow reports whether a request under key may proceed and how many
	// requests remain in the current window.
	Allow(ctx context.Context, key string) (allowed bool, remaining int)
	// Limit returns the configured requests-per-minute, for response headers.
	Limit() int
	// Stop releases any background resources.
	Stop()
}

// ---------------------------------------------------------------------------
// Redis-backed limiter
// ---------------------------------------------------------------------------

// RedisLimiter enforces a cluster-wide budget using the GCRA limiter from
// redis_rate.
type RedisLimiter struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
}

// NewRedisLimiter creates a limiter sharing its budget through the given
// Redis client.
func NewRedisLimiter(rdb *redis.Client, config RateLimitConfig) *RedisLimiter {
	return &RedisLimiter{
		limiter: redis_rate.NewLimiter(rdb),
		limit: redis_rate.Limit{
			Rate:   config.RequestsPerMinute,
			Burst:  config.BurstSize,
			Period: time.Minute,
		},
	}
}

// Allow consults Redis. A Redis failure fails open: blocking all traffic
// because the limiter store is down would turn a cache outage into a full
// outage.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, int) {
	res, err := l.limiter.Allow(ctx, key, l.limit)
	if err != nil {
		return true, l.limit.Burst
	}
	return res.Allowed > 0, res.Remaining
}

// Limit returns the configured requests-per-minute.
func (l *RedisLimiter) Limit() int { return l.limit.Rate }

// Stop is a no-op; the Redis client is owned by the caller.
func (l *RedisLimiter) Stop() {}

// ---------------------------------------------------------------------------
// In-memory limiter
// ---------------------------------------------------------------------------

// localEntry tracks the token bucket for a single client
type localEntry struct {
	tokens     float64
	lastUpdate time.Time
}

// LocalLimiter implements a per-process token bucket rate limiter.
type LocalLimiter struct {
	config  RateLimitConfig
	entries map[string]*localEntry
	mu      sync.Mutex
	stopCh  chan struct{}
	stopped sync.Once
}

// NewLocalLimiter creates an in-memory limiter with the given config.
func NewLocalLimiter(config RateLimitConfig) *LocalLimiter {
	rl := &LocalLimiter{
		config:  config,
		entries: make(map[string]*localEntry),
		stopCh:  make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

// cleanup periodically removes idle entries
func (rl *LocalLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now()
			for key, entry := range rl.entries {
				// Entries idle long enough to have refilled completely carry
				// no state worth keeping.
				if now.Sub(entry.lastUpdate) > 10*time.Minute {
					delete(rl.entries, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

// Stop stops the cleanup goroutine.
func (rl *LocalLimiter) Stop() {
	rl.stopped.Do(func() { close(rl.stopCh) })
}

// Limit returns the configured requests-per-minute.
func (rl *LocalLimiter) Limit() int { return rl.config.RequestsPerMinute }

// Allow checks whether a request from the given key should be allowed.
func (rl *LocalLimiter) Allow(ctx context.Context, key string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	entry, exists := rl.entries[key]

	if !exists {
		// New client, give them full burst
		rl.entries[key] = &localEntry{
			tokens:     float64(rl.config.BurstSize) - 1,
			lastUpdate: now,
		}
		return true, rl.config.BurstSize - 1
	}

	// Refill based on time elapsed, capped at burst size
	elapsed := now.Sub(entry.lastUpdate)
	tokensPerSecond := float64(rl.config.RequestsPerMinute) / 60.0
	entry.tokens = minf(float64(rl.config.BurstSize), entry.tokens+elapsed.Seconds()*tokensPerSecond)
	entry.lastUpdate = now

	if entry.tokens >= 1 {
		entry.tokens--
		return true, int(entry.tokens)
	}

	return false, 0
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

// RateLimitMiddleware creates a Gin middleware that rate limits requests
// against the given limiter backend.
func RateLimitMiddleware(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rateLimitKey(c)

		allowed, remaining := limiter.Allow(c.Request.Context(), key)
		if !allowed {
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": 60,
			})
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		c.Next()
	}
}

// rateLimitKey determines the budget a request draws from.
// Priority: user > organization (API-key callers) > client IP.
func rateLimitKey(c *gin.Context) string {
	if userID := c.GetString("user_id"); userID != "" {
		return "user:" + userID
	}
	if orgID := c.GetString("organization_id"); orgID != "" {
		return "org:" + orgID
	}

	ip := c.ClientIP()
	if ip == "" {
		ip = c.Request.RemoteAddr
	}
	return "ip:" + ip
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
