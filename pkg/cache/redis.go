package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	rediscache "github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store shared by every gateway instance pointing at the same
// Redis. Entries are msgpack-encoded by go-redis/cache and expire through the
// Redis TTL.
type RedisStore struct {
	redis redis.UniversalClient
	cache *rediscache.Cache
}

var _ Store = (*RedisStore)(nil)

type redisOptions struct {
	localCache rediscache.LocalCache
}

// RedisOption configures a RedisStore.
type RedisOption func(*redisOptions)

// WithLocalCache adds an in-process TinyLFU layer in front of Redis holding up
// to size entries for at most ttl. Entries past their own expiry are still
// treated as misses.
func WithLocalCache(size int, ttl time.Duration) RedisOption {
	return func(o *redisOptions) {
		if size > 0 && ttl > 0 {
			o.localCache = rediscache.NewTinyLFU(size, ttl)
		}
	}
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(redisClient redis.UniversalClient, opts ...RedisOption) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}

	o := &redisOptions{}
	for _, opt := range opts {
		opt(o)
	}

	return &RedisStore{
		redis: redisClient,
		cache: rediscache.New(&rediscache.Options{
			Redis:      redisClient,
			LocalCache: o.localCache,
		}),
	}
}

// Get retrieves an entry by key.
// Returns ErrCacheMiss if the key doesn't exist or the entry is expired.
func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, error) {
	var entry Entry
	if err := s.cache.Get(ctx, key, &entry); err != nil {
		if errors.Is(err, rediscache.ErrCacheMiss) {
			CacheMisses.WithLabelValues(storeRedis).Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues(storeRedis, "get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	// The local layer can outlive the Redis TTL
	if entry.IsExpired(time.Now()) {
		CacheMisses.WithLabelValues(storeRedis).Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues(storeRedis).Inc()
	return &entry, nil
}

// Put stores an entry with the given TTL.
func (s *RedisStore) Put(ctx context.Context, key string, entry *Entry, ttl time.Duration) error {
	if err := validatePut(entry, ttl); err != nil {
		CacheErrors.WithLabelValues(storeRedis, "put").Inc()
		return err
	}

	if err := s.cache.Set(&rediscache.Item{
		Ctx:   ctx,
		Key:   key,
		Value: entry,
		TTL:   ttl,
	}); err != nil {
		CacheErrors.WithLabelValues(storeRedis, "put").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	CacheStoredBytes.WithLabelValues(storeRedis).Add(float64(len(entry.Body)))
	return nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
