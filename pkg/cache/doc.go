// Package cache provides Redis-backed caching for raw stats payloads.
//
// Reference data such as the league-wide player index changes rarely
// but is expensive to fetch through the throttled upstream. Callers
// cache the raw JSON body under a deterministic key and decode on read.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.Key{
//		Endpoint: "commonallplayers",
//		Params:   url.Values{"Season": []string{"2023-24"}},
//	}
//
//	data, err := manager.Get(ctx, key)
//	if err == cache.ErrCacheMiss {
//		// fetch upstream, then:
//		// manager.Set(ctx, key, body, 6*time.Hour)
//	}
//
// # Metrics
//
// The cache manager exports Prometheus metrics:
//
//   - ingest_cache_hits_total - Cache hits
//   - ingest_cache_misses_total - Cache misses
//   - ingest_cache_size_bytes - Bytes written to the cache
//   - ingest_cache_errors_total{operation} - Cache operation errors
package cache
