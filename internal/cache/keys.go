package cache

import (
	"net/url"
	"strings"
)

// Entity types served by the entity resolver.
const (
	EntityUser    = "user"
	EntityChannel = "channel"
	EntityFile    = "file"
	EntityService = "service"
)

// EntityKey returns "entity:{type}:{id}". Each part of a composite id is
// path-escaped before the join, so distinct parts never share a key.
func EntityKey(entityType string, idParts ...string) string {
	return "entity:" + entityType + ":" + joinParts(idParts...)
}

// MetricKey returns the cache key of one metric of one service.
func MetricKey(ownerID, service, metric string) string {
	return "metric:" + joinParts(ownerID, service, metric)
}

func joinParts(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = escapePart(p)
	}
	return strings.Join(escaped, ":")
}

// escapePart escapes a key part so it never contains ':'.
func escapePart(p string) string {
	return strings.ReplaceAll(url.PathEscape(p), ":", "%3A")
}
