package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/maypok86/otter/v2"
)

// MemoryStore is an in-process W-TinyLFU Store backed by otter. It is not
// shared between gateway instances.
type MemoryStore struct {
	cache *otter.Cache[string, *Entry]
	now   func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store holding at most maxSize entries. maxTTL bounds
// how long any entry may live; per-entry TTLs are enforced on read.
func NewMemoryStore(maxSize int, maxTTL time.Duration) (*MemoryStore, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("max size must be > 0 (got %d)", maxSize)
	}
	if maxTTL <= 0 {
		return nil, fmt.Errorf("max ttl must be > 0 (got %v)", maxTTL)
	}

	c, err := otter.New[string, *Entry](&otter.Options[string, *Entry]{
		MaximumSize:      maxSize,
		ExpiryCalculator: otter.ExpiryWriting[string, *Entry](maxTTL),
	})
	if err != nil {
		return nil, fmt.Errorf("create memory cache: %w", err)
	}
	return &MemoryStore{cache: c, now: time.Now}, nil
}

// Get returns a copy of the entry stored under key.
func (m *MemoryStore) Get(_ context.Context, key string) (*Entry, error) {
	e, ok := m.cache.GetIfPresent(key)
	if !ok {
		CacheMisses.WithLabelValues(storeMemory).Inc()
		return nil, ErrCacheMiss
	}
	if e.IsExpired(m.now()) {
		m.cache.Invalidate(key)
		CacheMisses.WithLabelValues(storeMemory).Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues(storeMemory).Inc()
	return e.Clone(), nil
}

// Put stores a copy of entry expiring ttl from now.
func (m *MemoryStore) Put(_ context.Context, key string, entry *Entry, ttl time.Duration) error {
	if err := validatePut(entry, ttl); err != nil {
		CacheErrors.WithLabelValues(storeMemory, "put").Inc()
		return err
	}

	stored := entry.Clone()
	stored.ExpiresAt = m.now().Add(ttl)
	m.cache.Set(key, stored)

	CacheStoredBytes.WithLabelValues(storeMemory).Add(float64(len(entry.Body)))
	return nil
}
