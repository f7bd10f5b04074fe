package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Namespace prefixes every cache key written by the resolver so operational
// tooling can flush parse results without touching unrelated keys.
const Namespace = "parsed_url:"

// DefaultTTL is applied uniformly to all entries. There is no per-entry
// override and no eviction beyond expiry.
const DefaultTTL = 48 * time.Hour

// Key derives the cache key for a candidate URL. Hashing keeps keys a uniform
// length regardless of how long the upstream URL gets.
func Key(url string) string {
	sum := sha256.Sum256([]byte(url))
	return Namespace + hex.EncodeToString(sum[:])
}

// Store is a key/value store with per-key expiration. Implementations must be
// safe for concurrent use and must degrade gracefully: Get reports a miss
// rather than an error when the backend is unreachable, and Set becomes a
// no-op, so the resolver falls back to always-fetch behaviour.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	// Flush removes all keys under Namespace and returns how many were removed.
	Flush(ctx context.Context) (int, error)
}
