package state

import (
	"sync"
	"time"
)

// RateLimit is a fixed-window request counter per identifier, backed
// by a Store so counts survive reloads of the route module that owns
// the limiter.
type RateLimit struct {
	mu          sync.Mutex
	store       *Store
	prefix      string
	maxRequests int
	window      time.Duration
	now         func() time.Time
}

type rateRecord struct {
	Count     int
	ResetTime time.Time
}

// RateResult reports the outcome of a single Check call.
type RateResult struct {
	Allowed   bool
	Remaining int
	ResetTime time.Time
}

// NewRateLimit creates a named limiter on the given store. A nil store
// uses the process-wide Default store.
func NewRateLimit(store *Store, name string, maxRequests int, window time.Duration) *RateLimit {
	if store == nil {
		store = Default
	}
	if maxRequests <= 0 {
		maxRequests = 1
	}
	return &RateLimit{
		store:       store,
		prefix:      "ratelimit:" + name + ":",
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
	}
}

// Check counts one attempt for identifier. A rejected attempt never
// mutates the record, so hammering a full window cannot extend it.
func (limit *RateLimit) Check(identifier string) RateResult {
	if limit == nil {
		return RateResult{Allowed: true}
	}
	limit.mu.Lock()
	defer limit.mu.Unlock()

	now := limit.now()
	key := limit.prefix + identifier

	record, ok := limit.store.Get(key).(rateRecord)
	if !ok || now.After(record.ResetTime) {
		record = rateRecord{Count: 1, ResetTime: now.Add(limit.window)}
		limit.store.Set(key, record, limit.window)
		return RateResult{
			Allowed:   true,
			Remaining: limit.maxRequests - 1,
			ResetTime: record.ResetTime,
		}
	}

	if record.Count >= limit.maxRequests {
		return RateResult{
			Allowed:   false,
			Remaining: 0,
			ResetTime: record.ResetTime,
		}
	}

	record.Count++
	limit.store.Set(key, record, limit.window)
	return RateResult{
		Allowed:   true,
		Remaining: limit.maxRequests - record.Count,
		ResetTime: record.ResetTime,
	}
}

// Reset clears the record for one identifier only.
func (limit *RateLimit) Reset(identifier string) {
	if limit == nil {
		return
	}
	limit.mu.Lock()
	defer limit.mu.Unlock()
	limit.store.Delete(limit.prefix + identifier)
}
