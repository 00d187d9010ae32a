package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives lazy expiry deterministically.
type fakeClock struct {
	current time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{current: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)}
}

func (clock *fakeClock) Now() time.Time {
	return clock.current
}

func (clock *fakeClock) Advance(d time.Duration) {
	clock.current = clock.current.Add(d)
}

func newTestStore(defaultTTL time.Duration) (*Store, *fakeClock) {
	store := NewStore(defaultTTL)
	clock := newFakeClock()
	store.now = clock.Now
	return store, clock
}

func TestStoreSetGet(t *testing.T) {
	store, _ := newTestStore(0)

	store.Set("counter", 42)
	assert.Equal(t, 42, store.Get("counter"))
	assert.Nil(t, store.Get("missing"))
}

func TestStoreDefaultTTLApplies(t *testing.T) {
	store, clock := newTestStore(time.Minute)

	store.Set("short", "value")
	clock.Advance(59 * time.Second)
	assert.Equal(t, "value", store.Get("short"))

	clock.Advance(2 * time.Second)
	assert.Nil(t, store.Get("short"))
}

func TestStoreExplicitTTLOverridesDefault(t *testing.T) {
	store, clock := newTestStore(time.Minute)

	store.Set("long", "value", time.Hour)
	clock.Advance(30 * time.Minute)
	assert.Equal(t, "value", store.Get("long"))

	store.Set("forever", "value", 0)
	clock.Advance(240 * time.Hour)
	assert.Equal(t, "value", store.Get("forever"))
}

func TestStoreLenSkipsExpired(t *testing.T) {
	store, clock := newTestStore(0)

	store.Set("a", 1, time.Second)
	store.Set("b", 2)
	require.Equal(t, 2, store.Len())

	clock.Advance(2 * time.Second)
	assert.Equal(t, 1, store.Len())
	// detection removed the entry, not just hid it
	assert.Nil(t, store.Get("a"))
}

func TestStoreMissingKeysAreSafe(t *testing.T) {
	store, _ := newTestStore(0)

	assert.NotPanics(t, func() {
		store.Delete("nope")
		assert.Nil(t, store.Get("nope"))
		store.Clear()
		store.Reset()
	})
	assert.Equal(t, 0, store.Len())
}

func TestStoreKeysFiltersByPrefix(t *testing.T) {
	store, clock := newTestStore(0)

	store.Set("cache:posts:1", "a")
	store.Set("cache:posts:2", "b", time.Second)
	store.Set("cache:users:1", "c")
	store.Set("handler:x", "d")

	clock.Advance(2 * time.Second)

	assert.Equal(t, []string{"cache:posts:1"}, store.Keys("cache:posts:"))
	assert.Len(t, store.Keys("cache:"), 2)
}

func TestStoreClearRemovesEverything(t *testing.T) {
	store, _ := newTestStore(0)

	store.Set("a", 1)
	store.Set("b", 2)
	store.Clear()

	assert.Equal(t, 0, store.Len())
	assert.Nil(t, store.Get("a"))
}

func TestNilStoreIsSafe(t *testing.T) {
	var store *Store
	assert.NotPanics(t, func() {
		store.Set("k", 1)
		assert.Nil(t, store.Get("k"))
		store.Delete("k")
		store.Clear()
		assert.Equal(t, 0, store.Len())
	})
}
