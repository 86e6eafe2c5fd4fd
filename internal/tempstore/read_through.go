package tempstore

import (
	"context"
	"time"
)

// ReadThrough fills the store from fn on a miss.
type ReadThrough[V any, I any] struct {
	store *Store
	fn    func(ctx context.Context, input I) (V, error)
	skip  bool
}

// NewReadThrough wraps fn. When skip is true every Get calls fn directly.
func NewReadThrough[V any, I any](store *Store, fn func(ctx context.Context, input I) (V, error), skip bool) *ReadThrough[V, I] {
	return &ReadThrough[V, I]{store: store, fn: fn, skip: skip}
}

// Get returns the cached value for key or computes, caches and returns it.
// Errors are not cached.
func (r *ReadThrough[V, I]) Get(ctx context.Context, key string, input I, ttl time.Duration) (V, error) {
	if r.skip {
		return r.fn(ctx, input)
	}

	if value, ok := GetAs[V](r.store, key); ok {
		return value, nil
	}

	value, err := r.fn(ctx, input)
	if err != nil {
		return value, err
	}

	r.store.SetWithTTL(key, value, ttl)
	return value, nil
}
