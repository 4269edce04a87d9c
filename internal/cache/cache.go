package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Loader computes the value for a key on a cache miss.
type Loader[K comparable, V any] func(ctx context.Context, key K) (V, error)

// Memoized wraps a loader with lookup-or-compute-and-store semantics and an
// explicit time-to-live. Errors are never cached; the next call retries the
// loader.
type Memoized[K comparable, V any] struct {
	cache *ttlcache.Cache[K, V]
	load  Loader[K, V]
}

// Memoize builds a memoized view of load with the given TTL.
func Memoize[K comparable, V any](ttl time.Duration, load Loader[K, V]) *Memoized[K, V] {
	c := ttlcache.New[K, V](
		ttlcache.WithTTL[K, V](ttl),
		ttlcache.WithDisableTouchOnHit[K, V](),
	)
	go c.Start()

	return &Memoized[K, V]{cache: c, load: load}
}

// Get returns the cached value for key, computing and storing it on a miss.
func (m *Memoized[K, V]) Get(ctx context.Context, key K) (V, error) {
	if item := m.cache.Get(key); item != nil {
		return item.Value(), nil
	}

	value, err := m.load(ctx, key)
	if err != nil {
		var zero V
		return zero, err
	}

	m.cache.Set(key, value, ttlcache.DefaultTTL)
	return value, nil
}

// Forget drops a key so the next Get recomputes it.
func (m *Memoized[K, V]) Forget(key K) {
	m.cache.Delete(key)
}

// Stop shuts down the expiry janitor.
func (m *Memoized[K, V]) Stop() {
	m.cache.Stop()
}
