package jwt

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store records revoked token ids.
type Store interface {
	// Revoke marks a token id as revoked until expiration elapses.
	Revoke(ctx context.Context, tokenID string, expiration time.Duration) error

	// IsRevoked checks if a token id has been revoked.
	IsRevoked(ctx context.Context, tokenID string) (bool, error)

	// Close releases any resources used by the store.
	Close() error
}

// MemoryStore is an in-memory implementation of Store.
// Suitable for single-instance deployments or testing.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]time.Time

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	closeOnce       sync.Once
}

// MemoryStoreOption is a functional option for MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// NewMemoryStore creates a new in-memory token store.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		tokens:          make(map[string]time.Time),
		cleanupInterval: 5 * time.Minute,
		stopCleanup:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.cleanup()
	return s
}

// WithCleanupInterval sets the cleanup interval.
func WithCleanupInterval(d time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.cleanupInterval = d
	}
}

// Revoke marks a token id as revoked.
func (s *MemoryStore) Revoke(_ context.Context, tokenID string, expiration time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[tokenID] = time.Now().Add(expiration)
	return nil
}

// IsRevoked checks if a token id has been revoked.
func (s *MemoryStore) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exp, exists := s.tokens[tokenID]
	if !exists {
		return false, nil
	}
	return time.Now().Before(exp), nil
}

// Close stops the cleanup goroutine.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() { close(s.stopCleanup) })
	return nil
}

// Size returns the number of revoked tokens in the store.
func (s *MemoryStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

func (s *MemoryStore) cleanup() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			now := time.Now()
			for token, exp := range s.tokens {
				if now.After(exp) {
					delete(s.tokens, token)
				}
			}
			s.mu.Unlock()
		case <-s.stopCleanup:
			return
		}
	}
}

// RedisStore keeps revoked token ids in Redis with the remaining token
// lifetime as TTL, so revocations are shared between replicas.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a Redis-backed revocation store.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, prefix: "jwt:revoked:"}
}

// Revoke marks a token id as revoked.
func (s *RedisStore) Revoke(ctx context.Context, tokenID string, expiration time.Duration) error {
	return s.client.Set(ctx, s.prefix+tokenID, 1, expiration).Err()
}

// IsRevoked checks if a token id has been revoked.
func (s *RedisStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.prefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close does nothing; the client is owned by the caller.
func (s *RedisStore) Close() error {
	return nil
}
