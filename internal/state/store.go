package state

import (
	"sort"
	"sync"
	"time"
)

// Store is a process-wide key/value store with per-entry lazy TTL
// expiry. It outlives the route modules built on top of it: a module
// reload destroys the view objects (Cache, RateLimit, Handler) but
// never the entries they stored, which is what lets runtime data
// survive a reload.
type Store struct {
	mu         sync.Mutex
	defaultTTL time.Duration
	entries    map[string]*entry
	now        func() time.Time
}

type entry struct {
	value     any
	createdAt time.Time
	ttl       time.Duration
}

// Default is the process-wide store instance. Tests needing isolation
// should construct their own Store or call Reset.
var Default = NewStore(0)

// NewStore creates a store. defaultTTL applies to entries set without
// an explicit TTL; zero means entries never expire by default.
func NewStore(defaultTTL time.Duration) *Store {
	return &Store{
		defaultTTL: defaultTTL,
		entries:    make(map[string]*entry),
		now:        time.Now,
	}
}

// Get returns the live value for key, or nil if the key is absent or
// expired. Detecting an expired entry removes it.
func (store *Store) Get(key string) any {
	if store == nil {
		return nil
	}
	store.mu.Lock()
	defer store.mu.Unlock()

	existing, ok := store.entries[key]
	if !ok {
		return nil
	}
	if store.expiredLocked(existing) {
		delete(store.entries, key)
		return nil
	}
	return existing.value
}

// Set upserts key. With no explicit TTL the store default applies; an
// explicit TTL overrides it for this entry only, and an explicit zero
// or negative TTL means the entry never expires.
func (store *Store) Set(key string, value any, ttl ...time.Duration) {
	if store == nil {
		return
	}
	effective := store.defaultTTL
	if len(ttl) > 0 {
		effective = ttl[0]
		if effective < 0 {
			effective = 0
		}
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	store.entries[key] = &entry{
		value:     value,
		createdAt: store.now(),
		ttl:       effective,
	}
}

// Delete removes key. Missing keys are a no-op.
func (store *Store) Delete(key string) {
	if store == nil {
		return
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	delete(store.entries, key)
}

// Clear removes every entry.
func (store *Store) Clear() {
	if store == nil {
		return
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	store.entries = make(map[string]*entry)
}

// Reset is Clear under a name that signals test teardown intent.
func (store *Store) Reset() {
	store.Clear()
}

// Len counts live entries, removing any found expired along the way.
func (store *Store) Len() int {
	if store == nil {
		return 0
	}
	store.mu.Lock()
	defer store.mu.Unlock()

	count := 0
	for key, existing := range store.entries {
		if store.expiredLocked(existing) {
			delete(store.entries, key)
			continue
		}
		count++
	}
	return count
}

// Keys returns the live keys that start with prefix, sorted. Expired
// entries encountered during the scan are removed.
func (store *Store) Keys(prefix string) []string {
	if store == nil {
		return nil
	}
	store.mu.Lock()
	defer store.mu.Unlock()

	var keys []string
	for key, existing := range store.entries {
		if len(key) < len(prefix) || key[:len(prefix)] != prefix {
			continue
		}
		if store.expiredLocked(existing) {
			delete(store.entries, key)
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (store *Store) expiredLocked(existing *entry) bool {
	if existing.ttl <= 0 {
		return false
	}
	return store.now().Sub(existing.createdAt) > existing.ttl
}
