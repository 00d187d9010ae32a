package state

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// RouteKey derives the stable state key for a route. The key depends
// only on the externally visible route path, never on any in-memory
// object identity, so every generation of a reloaded route module
// addresses the same entry.
func RouteKey(routePath string) string {
	return fmt.Sprintf("route:%016x", xxhash.Sum64String(routePath))
}
