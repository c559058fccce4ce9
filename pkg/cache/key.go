package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix namespaces all cache keys in Redis.
const KeyPrefix = "inspire"

// CacheKey identifies a cached search response.
type CacheKey struct {
	// Endpoint is the request path (e.g., "/search")
	Endpoint string

	// QueryParams are the query parameters (e.g., {"jrec": "1"})
	QueryParams url.Values
}

// String generates a deterministic cache key string.
// Format: inspire:endpoint:query1=val1:query2=val2
//
// Example:
//
//	inspire:search:cc=HepNames:jrec=1:of=xm:rg=250
func (k CacheKey) String() string {
	parts := []string{KeyPrefix}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	// Sorted for determinism; multi-valued params keep their order.
	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(k.QueryParams[key], ",")))
		}
	}

	return strings.Join(parts, ":")
}
