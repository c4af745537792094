// Package cache provides the short-lived response cache behind the read API.
// Entries are serialized response bodies keyed by endpoint; every entry
// expires after a fixed TTL.
package cache

import "context"

// Cache is the common interface for the response cache. Implementations must
// be safe for concurrent use by HTTP handlers.
type Cache interface {
	// Get returns the cached value for key, or false if absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores value under key with the cache's fixed TTL.
	Set(ctx context.Context, key string, value []byte)

	// Close releases any underlying resources.
	Close() error
}

// RegionsKey is the cache key for the /regions response.
const RegionsKey = "regions"

// DataKey builds the cache key for a /data/{region} response.
func DataKey(region string) string {
	return "data:" + region
}
