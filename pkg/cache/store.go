package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCacheMiss indicates the requested key was not found or has expired
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates an entry that cannot be stored
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store is the shared key/response service the gateway reads and writes.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the entry for key, or ErrCacheMiss.
	Get(ctx context.Context, key string) (*Entry, error)

	// Put stores entry under key for ttl.
	Put(ctx context.Context, key string, entry *Entry, ttl time.Duration) error
}

func validatePut(entry *Entry, ttl time.Duration) error {
	if entry == nil {
		return fmt.Errorf("%w: entry cannot be nil", ErrInvalidEntry)
	}
	if ttl <= 0 {
		return fmt.Errorf("%w: ttl must be positive (got %v)", ErrInvalidEntry, ttl)
	}
	return nil
}
