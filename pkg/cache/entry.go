package cache

import (
	"net/http"
	"time"
)

// Entry is a stored origin response.
type Entry struct {
	// StatusCode is the HTTP status code of the cached response
	StatusCode int `msgpack:"status_code"`

	// Headers are the response headers, including the cache annotations
	Headers http.Header `msgpack:"headers"`

	// Body is the full response body
	Body []byte `msgpack:"body"`

	// CachedAt is when the gateway stored this response
	CachedAt time.Time `msgpack:"cached_at"`

	// ExpiresAt is when the entry stops being served
	ExpiresAt time.Time `msgpack:"expires_at"`
}

// IsExpired returns true if the entry has expired at now.
// Entries without an expiry never expire.
func (e *Entry) IsExpired(now time.Time) bool {
	if e.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(e.ExpiresAt)
}

// TTL returns the time left until expiration at now.
// Returns 0 if already expired.
func (e *Entry) TTL(now time.Time) time.Duration {
	ttl := e.ExpiresAt.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Age returns how long ago the entry was stored.
// Returns 0 for entries stamped in the future.
func (e *Entry) Age(now time.Time) time.Duration {
	age := now.Sub(e.CachedAt)
	if age < 0 {
		return 0
	}
	return age
}

// Clone returns a copy with its own header map. The body is shared; entries
// are never modified after being stored.
func (e *Entry) Clone() *Entry {
	c := *e
	c.Headers = e.Headers.Clone()
	return &c
}
