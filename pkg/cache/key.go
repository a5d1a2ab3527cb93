package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Key identifies one cached stats response. Two requests for the same
// endpoint with the same parameters share one entry.
type Key struct {
	// Endpoint is the stats endpoint path (e.g., "commonallplayers").
	Endpoint string

	// Params are the request query parameters.
	Params url.Values
}

// String generates a deterministic cache key string.
// Format: nba:endpoint:param1=val1:param2=val2
//
// Example:
//
//	nba:playergamelog:PlayerID=2544:Season=2023-24
func (k Key) String() string {
	parts := []string{"nba"}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	// Sorted for determinism.
	if len(k.Params) > 0 {
		keys := make([]string, 0, len(k.Params))
		for key := range k.Params {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.Params.Get(key)))
		}
	}

	return strings.Join(parts, ":")
}
