// Package tempstore is the process-wide scratch key/value store.
package tempstore

import (
	"slices"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/zjrosen/erwt/internal/log"
)

// NoExpiration keeps items until they are removed.
const NoExpiration = gocache.NoExpiration

// Store is safe for concurrent use.
type Store struct {
	cache *gocache.Cache
}

// New creates a store. A non-positive defaultTTL means items never expire;
// a non-positive cleanupInterval disables the background janitor.
func New(defaultTTL, cleanupInterval time.Duration) *Store {
	if defaultTTL <= 0 {
		defaultTTL = NoExpiration
	}
	return &Store{cache: gocache.New(defaultTTL, cleanupInterval)}
}

// Set stores value under key with the default TTL.
func (s *Store) Set(key string, value any) {
	s.cache.Set(key, value, gocache.DefaultExpiration)
}

// SetWithTTL stores value under key for ttl.
func (s *Store) SetWithTTL(key string, value any, ttl time.Duration) {
	s.cache.Set(key, value, ttl)
}

// Get returns the value for key; ok is false when absent or expired.
func (s *Store) Get(key string) (any, bool) {
	return s.cache.Get(key)
}

// GetAs returns the value for key as T. A stored value of another type
// counts as a miss.
func GetAs[T any](s *Store, key string) (T, bool) {
	var zero T
	value, found := s.cache.Get(key)
	if !found {
		return zero, false
	}
	v, ok := value.(T)
	if !ok {
		log.Error(log.CatStore, "wrong type assertion when getting value", "key", key)
		return zero, false
	}
	return v, true
}

func (s *Store) Remove(key string) {
	s.cache.Delete(key)
}

// Clear removes every item.
func (s *Store) Clear() {
	s.cache.Flush()
}

func (s *Store) Has(key string) bool {
	_, ok := s.cache.Get(key)
	return ok
}

// Keys returns the live keys in sorted order.
func (s *Store) Keys() []string {
	items := s.cache.Items()
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Values returns the live values in key order.
func (s *Store) Values() []any {
	items := s.cache.Items()
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	values := make([]any, len(keys))
	for i, k := range keys {
		values[i] = items[k].Object
	}
	return values
}

// Entries returns a copy of the live items.
func (s *Store) Entries() map[string]any {
	items := s.cache.Items()
	out := make(map[string]any, len(items))
	for k, item := range items {
		out[k] = item.Object
	}
	return out
}

// Len counts live items.
func (s *Store) Len() int {
	return len(s.cache.Items())
}

func (s *Store) IsEmpty() bool {
	return s.Len() == 0
}
