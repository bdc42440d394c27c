package redis

import "strings"

const (
	// KeyPrefix namespaces every key written by linkmetrics.
	KeyPrefix = "linkmetrics:"

	// NegativeMarker is the payload stored for a key confirmed absent.
	// Cached values are JSON documents and can never equal it.
	NegativeMarker = "\x00absent"
)

// Key returns the namespaced Redis key for a cache key.
func Key(cacheKey string) string {
	return KeyPrefix + cacheKey
}

// CacheKeyOf strips the namespace from a Redis key.
func CacheKeyOf(key string) (string, bool) {
	if !strings.HasPrefix(key, KeyPrefix) || len(key) == len(KeyPrefix) {
		return "", false
	}
	return key[len(KeyPrefix):], true
}
