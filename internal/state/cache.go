package state

import "time"

// Cache is a name-scoped view over a Store. Two caches with different
// names never collide even for identical keys. Expiry is lazy: an
// expired entry is only discovered and removed when next read, never
// by a background sweep.
type Cache struct {
	store      *Store
	prefix     string
	defaultTTL time.Duration
}

// NewCache creates a named cache on the given store. A nil store uses
// the process-wide Default store, matching how route modules construct
// caches at load time.
func NewCache(store *Store, name string, defaultTTL time.Duration) *Cache {
	if store == nil {
		store = Default
	}
	return &Cache{
		store:      store,
		prefix:     "cache:" + name + ":",
		defaultTTL: defaultTTL,
	}
}

func (cache *Cache) Get(key string) any {
	if cache == nil {
		return nil
	}
	return cache.store.Get(cache.prefix + key)
}

// Set upserts key with the cache default TTL unless an explicit TTL is
// given.
func (cache *Cache) Set(key string, value any, ttl ...time.Duration) {
	if cache == nil {
		return
	}
	effective := cache.defaultTTL
	if len(ttl) > 0 {
		effective = ttl[0]
	}
	cache.store.Set(cache.prefix+key, value, effective)
}

func (cache *Cache) Delete(key string) {
	if cache == nil {
		return
	}
	cache.store.Delete(cache.prefix + key)
}

// Clear removes every entry belonging to this cache, leaving other
// caches on the same store untouched.
func (cache *Cache) Clear() {
	if cache == nil {
		return
	}
	for _, key := range cache.store.Keys(cache.prefix) {
		cache.store.Delete(key)
	}
}

// Len counts this cache's live entries.
func (cache *Cache) Len() int {
	if cache == nil {
		return 0
	}
	return len(cache.store.Keys(cache.prefix))
}
