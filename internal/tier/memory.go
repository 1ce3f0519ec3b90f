package tier

import (
	"context"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// entry is the value stored in the LRU cache: the payload plus its
// absolute expiry. Keeping TTL state next to the value rather than in a
// parallel map follows Krishna8167-tempuscache's approach of pairing
// expiry with the cached value itself instead of a separate index.
type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Memory is the first pipeline tier: a bounded, size-evicting LRU with
// per-entry TTL, wrapping hashicorp/golang-lru/v2 the way
// Krishna8167-tempuscache wraps container/list + map — except capacity
// enforcement itself is delegated to the LRU package rather than
// hand-rolled, since golang-lru/v2 already does that correctly.
type Memory struct {
	cache      *lru.Cache[string, entry]
	defaultTTL time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// NewMemory returns a Memory tier holding at most capacity entries, each
// defaulting to defaultTTL when Put is called with ttl == 0.
func NewMemory(capacity int, defaultTTL time.Duration) (*Memory, error) {
	cache, err := lru.New[string, entry](capacity)
	if err != nil {
		return nil, err
	}
	return &Memory{cache: cache, defaultTTL: defaultTTL}, nil
}

// Get returns the value for storageKey. Lazy expiry: an entry found past
// its TTL is evicted on the spot and treated as a miss, mirroring
// tempuscache's deleteExpired-on-Get behavior.
func (m *Memory) Get(ctx context.Context, storageKey string) ([]byte, error) {
	e, ok := m.cache.Get(storageKey)
	if !ok {
		m.misses.Add(1)
		return nil, ErrNotFound
	}
	if e.expired(time.Now()) {
		m.cache.Remove(storageKey)
		m.misses.Add(1)
		return nil, ErrNotFound
	}
	m.hits.Add(1)
	return e.value, nil
}

// Put inserts value under storageKey with the given ttl, or
// defaultTTL if ttl is zero. Eviction of the least-recently-used entry on
// overflow is handled by the underlying LRU cache.
func (m *Memory) Put(ctx context.Context, storageKey string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	m.cache.Add(storageKey, entry{value: value, expiresAt: expiresAt})
	return nil
}

// Delete removes storageKey if present. Idempotent.
func (m *Memory) Delete(ctx context.Context, storageKey string) error {
	m.cache.Remove(storageKey)
	return nil
}

// Stats reports the current entry count. Byte accounting is not tracked
// per-entry here since golang-lru/v2 doesn't expose it; callers needing
// byte totals should consult the local or blob tier instead.
func (m *Memory) Stats() Stats {
	return Stats{Name: "mem", Entries: int64(m.cache.Len())}
}

// Close is a no-op: the in-process LRU holds no external resources.
func (m *Memory) Close() error { return nil }

// HitRatio reports hits / (hits + misses), for the supplemented
// introspection endpoint in SPEC_FULL.md §4. Returns 0 when no Gets have
// been observed yet.
func (m *Memory) HitRatio() float64 {
	h, miss := m.hits.Load(), m.misses.Load()
	total := h + miss
	if total == 0 {
		return 0
	}
	return float64(h) / float64(total)
}
