package biz

import (
	"context"
	"crypto/md5" //nolint:gosec // cache key digest only
	"encoding/hex"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	gocache "github.com/patrickmn/go-cache"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/docqa/internal/pkg/rag"
	redisc "github.com/kart-io/docqa/pkg/component/redis"
	"github.com/kart-io/docqa/pkg/utils/json"
)

// Cache key prefixes.
const (
	PrefixQAResult   = "qa_result"
	PrefixQADetailed = "qa_detailed"
	PrefixEmbeddings = "embeddings"
)

// Cache backends reported by Stats.
const (
	CacheRedis  = "redis"
	CacheMemory = "in-memory"
)

var _ rag.EmbeddingCache = (*ResultCache)(nil)

// CacheConfig 结果缓存配置。
type CacheConfig struct {
	// DefaultTTL Set 传入 0 时使用的过期时间。
	DefaultTTL time.Duration
	// QATTL 问答结果的过期时间。
	QATTL time.Duration
	// EmbeddingTTL 会话向量的过期时间。
	EmbeddingTTL time.Duration
}

// DefaultCacheConfig 返回默认缓存配置。
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		DefaultTTL:   time.Hour,
		QATTL:        time.Hour,
		EmbeddingTTL: 24 * time.Hour,
	}
}

// ResultCache 问答结果与会话向量缓存，优先使用 Redis，不可用时退化为进程内缓存。
type ResultCache struct {
	redis  *redisc.Client
	mem    *gocache.Cache
	config *CacheConfig

	hits   atomic.Int64
	misses atomic.Int64

	onSize func(int)
}

// CacheOption 配置 ResultCache。
type CacheOption func(*ResultCache)

// WithSizeObserver is called with the entry count after writes and clears.
func WithSizeObserver(fn func(int)) CacheOption {
	return func(c *ResultCache) { c.onSize = fn }
}

// NewResultCache creates a cache on client. A nil client selects the
// in-memory backend.
func NewResultCache(client *redisc.Client, config *CacheConfig, opts ...CacheOption) *ResultCache {
	if config == nil {
		config = DefaultCacheConfig()
	}
	c := &ResultCache{redis: client, config: config}
	if client == nil {
		c.mem = gocache.New(config.DefaultTTL, 10*time.Minute)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Backend returns the cache type.
func (c *ResultCache) Backend() string {
	if c.redis != nil {
		return CacheRedis
	}
	return CacheMemory
}

// Key joins prefix and args with ":".
func Key(prefix string, args ...string) string {
	return strings.Join(append([]string{prefix}, args...), ":")
}

// QuestionDigest returns the hex md5 of a question used in cache keys.
func QuestionDigest(question string) string {
	sum := md5.Sum([]byte(question)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// Get decodes the value at key into out and reports whether it was found.
// Backend and decode errors are logged and count as a miss.
func (c *ResultCache) Get(ctx context.Context, key string, out any) bool {
	data, ok := c.getBytes(ctx, key)
	if !ok {
		c.misses.Add(1)
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		logger.Warnw("failed to unmarshal cached value", "key", key, "error", err.Error())
		_ = c.Delete(ctx, key)
		c.misses.Add(1)
		return false
	}
	c.hits.Add(1)
	logger.Debugw("cache hit", "key", key)
	return true
}

func (c *ResultCache) getBytes(ctx context.Context, key string) ([]byte, bool) {
	if c.redis == nil {
		v, ok := c.mem.Get(key)
		if !ok {
			return nil, false
		}
		data, ok := v.([]byte)
		return data, ok
	}

	data, err := c.redis.Client().Get(ctx, key).Bytes()
	if err != nil {
		if err != goredis.Nil {
			logger.Warnw("failed to get from cache", "key", key, "error", err.Error())
		}
		return nil, false
	}
	return data, true
}

// Set stores value at key for ttl. A zero ttl uses the default TTL.
func (c *ResultCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.config.DefaultTTL
	}
	data, err := json.Marshal(value)
	if err != nil {
		logger.Warnw("failed to marshal value for caching", "key", key, "error", err.Error())
		return err
	}

	if c.redis == nil {
		c.mem.Set(key, data, ttl)
	} else if err := c.redis.Client().Set(ctx, key, data, ttl).Err(); err != nil {
		logger.Warnw("failed to set cache", "key", key, "error", err.Error())
		return err
	}
	c.reportSize(ctx)
	return nil
}

// Delete removes key.
func (c *ResultCache) Delete(ctx context.Context, key string) error {
	if c.redis == nil {
		c.mem.Delete(key)
		return nil
	}
	return c.redis.Client().Del(ctx, key).Err()
}

// GetQAResult loads the cached answer of question in a session.
func (c *ResultCache) GetQAResult(ctx context.Context, sessionID, question string, out any) bool {
	return c.Get(ctx, Key(PrefixQAResult, sessionID, QuestionDigest(question)), out)
}

// SetQAResult caches the answer of question in a session.
func (c *ResultCache) SetQAResult(ctx context.Context, sessionID, question string, result any) error {
	return c.Set(ctx, Key(PrefixQAResult, sessionID, QuestionDigest(question)), result, c.config.QATTL)
}

// GetEmbeddings implements rag.EmbeddingCache.
func (c *ResultCache) GetEmbeddings(ctx context.Context, sessionID string) (*rag.CachedEmbeddings, bool) {
	var data rag.CachedEmbeddings
	if !c.Get(ctx, Key(PrefixEmbeddings, sessionID), &data) {
		return nil, false
	}
	return &data, true
}

// SetEmbeddings implements rag.EmbeddingCache.
func (c *ResultCache) SetEmbeddings(ctx context.Context, sessionID string, data *rag.CachedEmbeddings) error {
	return c.Set(ctx, Key(PrefixEmbeddings, sessionID), data, c.config.EmbeddingTTL)
}

// ClearSession deletes every key containing sessionID and returns how many
// were removed.
func (c *ResultCache) ClearSession(ctx context.Context, sessionID string) int {
	if sessionID == "" {
		return 0
	}
	deleted := 0
	if c.redis == nil {
		for key := range c.mem.Items() {
			if strings.Contains(key, sessionID) {
				c.mem.Delete(key)
				deleted++
			}
		}
	} else {
		client := c.redis.Client()
		iter := client.Scan(ctx, 0, "*"+sessionID+"*", 0).Iterator()
		for iter.Next(ctx) {
			if err := client.Del(ctx, iter.Val()).Err(); err != nil {
				logger.Warnw("failed to delete cache key", "key", iter.Val(), "error", err.Error())
				continue
			}
			deleted++
		}
		if err := iter.Err(); err != nil {
			logger.Warnw("error during cache scan", "session_id", sessionID, "error", err.Error())
		}
	}
	logger.Infow("cleared session cache", "session_id", sessionID, "deleted_count", deleted)
	c.reportSize(ctx)
	return deleted
}

// Count returns the number of cached entries.
func (c *ResultCache) Count(ctx context.Context) int {
	if c.redis == nil {
		return c.mem.ItemCount()
	}
	n, err := c.redis.DBSize(ctx)
	if err != nil {
		logger.Warnw("failed to count cache keys", "error", err.Error())
		return 0
	}
	return int(n)
}

func (c *ResultCache) reportSize(ctx context.Context) {
	if c.onSize != nil {
		c.onSize(c.Count(ctx))
	}
}

// Ping reports whether the backend is reachable.
func (c *ResultCache) Ping(ctx context.Context) bool {
	if c.redis == nil {
		return true
	}
	return c.redis.Ping(ctx) == nil
}

// Stats 返回缓存统计信息。
func (c *ResultCache) Stats(ctx context.Context) map[string]any {
	stats := map[string]any{
		"type":      c.Backend(),
		"connected": true,
		"hits":      c.hits.Load(),
		"misses":    c.misses.Load(),
	}
	if c.redis == nil {
		stats["num_entries"] = c.mem.ItemCount()
		return stats
	}

	mem, err := c.redis.Memory(ctx)
	if err != nil {
		logger.Warnw("failed to read redis memory stats", "error", err.Error())
		stats["connected"] = false
		stats["error"] = err.Error()
		return stats
	}
	stats["memory_used"] = mem.UsedMemory
	stats["memory_human"] = mem.UsedMemoryHuman
	return stats
}
