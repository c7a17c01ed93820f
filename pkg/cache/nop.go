package cache

import (
	"context"
	"time"
)

// NopCache is the adapter selected when caching is disabled or the backend is
// unavailable at startup. Every call is a no-op; Get always misses.
type NopCache struct{}

// NewNopCache returns the no-op cache adapter.
func NewNopCache() NopCache {
	return NopCache{}
}

func (NopCache) Get(ctx context.Context, key string) ([]byte, bool) {
	return nil, false
}

func (NopCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
}

func (NopCache) DeletePattern(ctx context.Context, pattern string) int {
	return 0
}
