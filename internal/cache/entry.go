package cache

import (
	"strings"
	"time"
)

// Entry wraps one cached record copy.
type Entry struct {
	Value     []byte        `json:"value"`
	FetchedAt time.Time     `json:"fetched_at"`
	TTL       time.Duration `json:"ttl"`
	// SourceVersion is the authoritative record version (content version or
	// entitlement event sequence) the value was fetched at. Entries below a
	// key's version floor are treated as misses even inside their TTL.
	SourceVersion int64 `json:"source_version"`
}

// Fresh reports whether the entry may be served without a refresh attempt.
func (e *Entry) Fresh(now time.Time) bool {
	return now.Before(e.FetchedAt.Add(e.TTL))
}

// Servable reports whether the entry is still usable under stale-if-error,
// which allows at most one extra TTL window past expiry.
func (e *Entry) Servable(now time.Time) bool {
	return now.Before(e.FetchedAt.Add(2 * e.TTL))
}

// EntitlementKey builds the cache key for a subscriber's entitlement.
func EntitlementKey(userID string) string {
	return "entitlement:" + userID
}

// ContentKey builds the cache key for a catalog record.
func ContentKey(contentID string) string {
	return "content:" + contentID
}

// KeyClass extracts the namespace prefix for metrics.
func KeyClass(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}
