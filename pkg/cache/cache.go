package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrCacheMiss = errors.New("cache: key not found")

// Service is the cache the pipeline shares between replicas: dedup claims
// and short-lived read caches. Values round-trip through JSON; *string
// destinations get the raw value.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	// TryLock sets key only if it is absent and reports whether it did.
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Unlock releases a key taken by this process's TryLock. A claim that
	// expired and was retaken elsewhere is left alone.
	Unlock(ctx context.Context, key string) error
	Close() error
}

// Key joins parts with ':' into a cache key, e.g. Key("dedup", pairKey).
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}
