package cache

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis starts an in-memory Redis for unit tests. Integration tests
// under tests/ run against a real Redis container.
func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	rs := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: rs.Addr()})
	t.Cleanup(func() { client.Close() })

	return rs, client
}

func testEntry(now time.Time, ttl time.Duration) *Entry {
	return &Entry{
		StatusCode: http.StatusOK,
		Headers: http.Header{
			"Content-Type":   []string{"application/json"},
			"Cache-Control":  []string{"public, max-age=3600"},
			"X-Cache-Status": []string{"MISS"},
		},
		Body:      []byte(`{"id": 42, "label": "Person"}`),
		CachedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}

func TestNewRedisStore_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewRedisStore should panic with nil redis client")
		}
	}()
	NewRedisStore(nil)
}

func TestRedisStore_PutAndGet(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	entry := testEntry(now, time.Hour)

	require.NoError(t, store.Put(ctx, "kg-edge:/api/kg/node/42", entry, time.Hour))

	got, err := store.Get(ctx, "kg-edge:/api/kg/node/42")
	require.NoError(t, err)

	assert.Equal(t, entry.StatusCode, got.StatusCode)
	assert.Equal(t, string(entry.Body), string(got.Body))
	assert.Equal(t, "public, max-age=3600", got.Headers.Get("Cache-Control"))
	assert.Equal(t, "MISS", got.Headers.Get("X-Cache-Status"))
	assert.True(t, entry.CachedAt.Equal(got.CachedAt), "CachedAt = %v, want %v", got.CachedAt, entry.CachedAt)
}

func TestRedisStore_Get_CacheMiss(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewRedisStore(client)

	before := testutil.ToFloat64(CacheMisses.WithLabelValues(storeRedis))

	_, err := store.Get(context.Background(), "kg-edge:/nonexistent")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Equal(t, before+1, testutil.ToFloat64(CacheMisses.WithLabelValues(storeRedis)))
}

func TestRedisStore_TTLExpiry(t *testing.T) {
	rs, client := setupTestRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, store.Put(ctx, "k", testEntry(now, time.Hour), time.Minute))
	assert.Equal(t, time.Minute, rs.TTL("k"))

	rs.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisStore_ExpiredEntryIsMiss(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	// Redis still holds it, but the entry itself is past its expiry
	entry := testEntry(time.Now().Add(-2*time.Hour), time.Hour)
	require.NoError(t, store.Put(ctx, "k", entry, time.Hour))

	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisStore_Put_Invalid(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	err := store.Put(ctx, "k", nil, time.Minute)
	assert.ErrorIs(t, err, ErrInvalidEntry)

	err = store.Put(ctx, "k", testEntry(time.Now(), time.Minute), 0)
	assert.ErrorIs(t, err, ErrInvalidEntry)
}

func TestRedisStore_Unavailable(t *testing.T) {
	rs, client := setupTestRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	rs.Close()

	_, err := store.Get(ctx, "k")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrCacheMiss), "unavailable store should not report a plain miss")

	err = store.Put(ctx, "k", testEntry(time.Now(), time.Minute), time.Minute)
	assert.Error(t, err)

	assert.Error(t, store.Ping(ctx))
}

func TestRedisStore_LocalCache(t *testing.T) {
	rs, client := setupTestRedis(t)
	store := NewRedisStore(client, WithLocalCache(100, time.Minute))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "k", testEntry(time.Now(), time.Hour), time.Hour))

	// Served from the local layer even after Redis loses the key
	rs.FlushAll()

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, got.StatusCode)
}

func TestRedisStore_Ping(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewRedisStore(client)

	assert.NoError(t, store.Ping(context.Background()))
}
