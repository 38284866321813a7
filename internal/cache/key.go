package cache

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// EntryKey identifies a cache entry by resource and canonical query params.
// The params portion is an order-independent hash so equivalent queries share
// one entry regardless of how the caller assembled the map.
func EntryKey(resource string, params map[string]string) string {
	if len(params) == 0 {
		return resource
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := xxhash.New()
	for _, k := range keys {
		// Length-prefix both halves so ("a","bc") and ("ab","c") differ.
		_, _ = fmt.Fprintf(h, "%d:%s=%d:%s;", len(k), k, len(params[k]), params[k])
	}

	return fmt.Sprintf("%s?%016x", resource, h.Sum64())
}
