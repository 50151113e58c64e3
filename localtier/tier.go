// Package localtier implements the fast, process-local cache tier: a
// bounded, TTL-indexed mapping from canonical key string to value.
package localtier

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultCapacity is the local tier's entry bound absent explicit
// configuration (Open Question ii: not fixed by the source spec).
const DefaultCapacity = 10_000

// Tier is the bounded in-memory TTL store backing the LOCAL layer. It is
// oblivious to watermarks and to invalidation: its staleness is bounded
// only by per-entry TTL and LRU eviction under capacity pressure.
type Tier struct {
	cache *lru.LRU[string, entry]
}

// entry pairs a cached value with the expiry derived from its Set TTL.
type entry struct {
	value     any
	expiresAt time.Time
}

// New creates a local tier with the given capacity. A zero or negative
// capacity falls back to DefaultCapacity. Every entry carries its own
// expiry, taken from the TTL passed to Set and checked on Get; the
// cache's construction-time TTL of 24 hours is an outer ceiling on every
// entry.
func New(capacity int) *Tier {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Tier{cache: lru.NewLRU[string, entry](capacity, nil, 24*time.Hour)}
}

// Get returns the cached value for key and whether it was present and
// unexpired.
func (t *Tier) Get(key string) (any, bool) {
	e, ok := t.cache.Get(key)
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		t.cache.Remove(key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with the given per-call TTL, evicting the
// least-recently-used entry if the tier is at capacity.
func (t *Tier) Set(key string, value any, ttl time.Duration) {
	t.cache.Add(key, entry{value: value, expiresAt: time.Now().Add(ttl)})
}

// Delete removes key, returning whether it was present.
func (t *Tier) Delete(key string) bool {
	return t.cache.Remove(key)
}

// Clear empties the tier.
func (t *Tier) Clear() {
	t.cache.Purge()
}

// Len returns the current number of entries held, which can include
// entries past their per-entry TTL that have not been read since.
func (t *Tier) Len() int {
	return t.cache.Len()
}
