// Package cache stores INSPIRE search responses in Redis so that a rerun of
// a harvest does not hit the service again for pages it has already seen.
//
// Entries are keyed by endpoint and query parameters, and expire according to
// the response's Expires header, or DefaultTTL when the header is absent.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	manager := cache.NewManager(redisClient)
//
//	key := cache.CacheKey{
//		Endpoint:    "/search",
//		QueryParams: url.Values{"jrec": []string{"251"}, "rg": []string{"250"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from INSPIRE, then:
//		entry, _ = cache.ResponseToEntry(resp, cache.DefaultTTL)
//		_ = manager.Set(ctx, key, entry)
//	}
//
// # Metrics
//
//   - inspire_cache_hits_total - Cache hits
//   - inspire_cache_misses_total - Cache misses
//   - inspire_cache_written_bytes_total - Bytes written to the cache
//   - inspire_cache_errors_total{operation} - Cache operation errors
package cache
