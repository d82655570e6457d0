// Package cache defines the port for caching serialized project definitions.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque values by key. A miss is (nil, false, nil); errors
// are reserved for backend failures.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// LocalEvicter is implemented by layered caches that can drop a key from
// their in-process layer only. Change events from other instances use it so
// a shared layer that the publisher already rewrote is left alone.
type LocalEvicter interface {
	EvictLocal(ctx context.Context, key string) error
}
