// Package cache provides the shared response store used by the edge gateway.
//
// The gateway only talks to a Store: a key/response service with Get and Put.
// Two implementations are provided:
//
//   - RedisStore: shared across gateway instances, backed by Redis through
//     go-redis/cache with an optional in-process TinyLFU layer
//   - MemoryStore: bounded in-process W-TinyLFU cache (otter), for single
//     instance deployments and tests
//
// Entries expire on their own once their TTL elapses. The gateway never
// deletes entries.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//	store := cache.NewRedisStore(redisClient, cache.WithLocalCache(1000, time.Minute))
//
//	key := cache.KeyFromURL("kg-edge:", req.URL)
//	entry, err := store.Get(ctx, key.String())
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from origin
//	}
//
// # HTTP Response Caching
//
//	entry, err := cache.ResponseToEntry(resp, time.Now(), ttl)
//	if err != nil {
//		return err
//	}
//	if err := store.Put(ctx, key.String(), entry, ttl); err != nil {
//		return err
//	}
//
//	// later
//	resp := cache.EntryToResponse(entry, req)
//
// # Metrics
//
//   - kg_edge_cache_hits_total{store} - Cache hits
//   - kg_edge_cache_misses_total{store} - Cache misses
//   - kg_edge_cache_errors_total{store,operation} - Store operation errors
//   - kg_edge_cache_writes_total{result} - Background writes from the gateway
//   - kg_edge_cache_stored_bytes_total{store} - Body bytes written
package cache
