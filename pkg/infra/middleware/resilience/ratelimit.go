package resilience

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/kart-io/docqa/pkg/infra/middleware/common"
	mwopts "github.com/kart-io/docqa/pkg/options/middleware"
	"github.com/kart-io/docqa/pkg/utils/errors"
	"github.com/kart-io/docqa/pkg/utils/id"
	"github.com/kart-io/docqa/pkg/utils/response"
)

// RateLimiter defines the interface for rate limiting implementations.
type RateLimiter interface {
	// Allow checks if a request with the given key is allowed.
	// Returns true if allowed, false if rate limit exceeded.
	Allow(ctx context.Context, key string) (bool, error)

	// Reset resets the rate limit counter for the given key.
	Reset(ctx context.Context, key string) error
}

// RateLimitConfig defines the configuration for rate limiting middleware.
type RateLimitConfig struct {
	// Limiter is the rate limiter implementation to use.
	Limiter RateLimiter

	// Window is reported to rejected clients through Retry-After.
	Window time.Duration

	// KeyPrefix separates the counters of different limits sharing a backend.
	KeyPrefix string

	// SkipPaths is a list of paths to skip rate limiting.
	SkipPaths []string

	// TrustProxyHeaders controls whether to trust proxy headers for IP extraction.
	TrustProxyHeaders bool
}

// RateLimit 返回按客户端 IP 限流的中间件。
// 限流器出错时放行请求并记录日志。
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}
	retryAfter := strconv.Itoa(int(math.Ceil(cfg.Window.Seconds())))

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		key := cfg.KeyPrefix + common.ClientIP(c, cfg.TrustProxyHeaders)
		allowed, err := cfg.Limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.Errorw("Rate limiter error", "error", err, "key", key)
			c.Next()
			return
		}
		if !allowed {
			logger.Warnw("Rate limit exceeded", "key", key, "path", c.Request.URL.Path)
			c.Header("Retry-After", retryAfter)
			response.Fail(c, errors.ErrRateLimitExceeded)
			return
		}
		c.Next()
	}
}

// NewRateLimiter builds the limiter selected by backend. The redis backend
// requires a client.
func NewRateLimiter(backend string, limit int, window time.Duration, client redis.UniversalClient) (RateLimiter, error) {
	switch backend {
	case "", mwopts.RateLimitBackendMemory:
		return NewMemoryRateLimiter(limit, window), nil
	case mwopts.RateLimitBackendRedis:
		if client == nil {
			return nil, fmt.Errorf("rate limit backend %q requires a redis client", backend)
		}
		return NewRedisRateLimiter(client, limit, window), nil
	case mwopts.RateLimitBackendTokenBucket:
		return NewTokenBucketRateLimiter(limit, window), nil
	default:
		return nil, fmt.Errorf("unsupported rate limit backend %q", backend)
	}
}

// StopRateLimiter stops the background cleanup of l, if it runs one.
func StopRateLimiter(l RateLimiter) {
	if s, ok := l.(interface{ Stop() }); ok {
		s.Stop()
	}
}

// ============================================================================
// Memory Rate Limiter Implementation
// ============================================================================

// MemoryRateLimiter implements a sliding window log in process memory.
type MemoryRateLimiter struct {
	limit  int
	window time.Duration
	store  sync.Map

	stopCleanup chan struct{}
	cleanupOnce sync.Once
}

type rateLimitEntry struct {
	mu        sync.Mutex
	requests  []time.Time
	lastCheck time.Time
}

// NewMemoryRateLimiter creates a new memory-based rate limiter.
func NewMemoryRateLimiter(limit int, window time.Duration) *MemoryRateLimiter {
	m := &MemoryRateLimiter{
		limit:       limit,
		window:      window,
		stopCleanup: make(chan struct{}),
	}
	go m.cleanupExpiredEntries()
	return m
}

// Allow checks if a request with the given key is allowed.
func (m *MemoryRateLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := time.Now()
	value, _ := m.store.LoadOrStore(key, &rateLimitEntry{})
	entry := value.(*rateLimitEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	entry.lastCheck = now
	entry.requests = filterExpiredRequests(entry.requests, now.Add(-m.window))
	if len(entry.requests) >= m.limit {
		return false, nil
	}
	entry.requests = append(entry.requests, now)
	return true, nil
}

// Reset resets the rate limit counter for the given key.
func (m *MemoryRateLimiter) Reset(_ context.Context, key string) error {
	m.store.Delete(key)
	return nil
}

// Stop stops the cleanup goroutine.
func (m *MemoryRateLimiter) Stop() {
	m.cleanupOnce.Do(func() { close(m.stopCleanup) })
}

func (m *MemoryRateLimiter) cleanupExpiredEntries() {
	ticker := time.NewTicker(m.window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			threshold := time.Now().Add(-2 * m.window)
			m.store.Range(func(key, value interface{}) bool {
				entry := value.(*rateLimitEntry)
				entry.mu.Lock()
				idle := entry.lastCheck.Before(threshold)
				entry.mu.Unlock()
				if idle {
					m.store.Delete(key)
				}
				return true
			})
		case <-m.stopCleanup:
			return
		}
	}
}

// filterExpiredRequests drops timestamps at or before cutoff. Timestamps are
// appended in order so the first one after cutoff starts the live window.
func filterExpiredRequests(requests []time.Time, cutoff time.Time) []time.Time {
	for i, t := range requests {
		if t.After(cutoff) {
			return requests[i:]
		}
	}
	return requests[:0]
}

// ============================================================================
// Redis Rate Limiter Implementation
// ============================================================================

// RedisRateLimiter implements a sliding window shared between replicas using
// Redis sorted sets.
type RedisRateLimiter struct {
	client redis.UniversalClient
	limit  int
	window time.Duration
	prefix string
}

// NewRedisRateLimiter creates a new Redis-based rate limiter.
func NewRedisRateLimiter(client redis.UniversalClient, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: "ratelimit:",
	}
}

// Allow checks if a request with the given key is allowed using Redis.
func (r *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := time.Now()
	redisKey := r.prefix + key
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + id.NewULID()

	pipe := r.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(now.Add(-r.window).UnixNano(), 10))
	countCmd := pipe.ZCard(ctx, redisKey)
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: member})
	pipe.Expire(ctx, redisKey, 2*r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis pipeline error: %w", err)
	}

	if countCmd.Val() >= int64(r.limit) {
		// 被拒绝的请求不计入窗口
		if err := r.client.ZRem(ctx, redisKey, member).Err(); err != nil {
			logger.Warnw("Failed to drop rejected request from window", "key", redisKey, "error", err)
		}
		return false, nil
	}
	return true, nil
}

// Reset resets the rate limit counter for the given key in Redis.
func (r *RedisRateLimiter) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}

// ============================================================================
// Token Bucket Rate Limiter Implementation
// ============================================================================

// TokenBucketRateLimiter gives every key a token bucket refilled at
// limit/window tokens per second with a burst of limit.
type TokenBucketRateLimiter struct {
	limit    rate.Limit
	burst    int
	mu       sync.Mutex
	limiters *gocache.Cache
}

// NewTokenBucketRateLimiter creates a token bucket limiter. Idle buckets are
// evicted after two windows.
func NewTokenBucketRateLimiter(limit int, window time.Duration) *TokenBucketRateLimiter {
	return &TokenBucketRateLimiter{
		limit:    rate.Limit(float64(limit) / window.Seconds()),
		burst:    limit,
		limiters: gocache.New(2*window, window),
	}
}

// Allow takes a token from the key's bucket.
func (t *TokenBucketRateLimiter) Allow(_ context.Context, key string) (bool, error) {
	t.mu.Lock()
	var l *rate.Limiter
	if v, ok := t.limiters.Get(key); ok {
		l = v.(*rate.Limiter)
	} else {
		l = rate.NewLimiter(t.limit, t.burst)
	}
	t.limiters.SetDefault(key, l)
	t.mu.Unlock()

	return l.Allow(), nil
}

// Reset refills the key's bucket.
func (t *TokenBucketRateLimiter) Reset(_ context.Context, key string) error {
	t.limiters.Delete(key)
	return nil
}

