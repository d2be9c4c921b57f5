// Package cache provides a typed in-memory cache with time-based
// expiration. Entries are expired lazily on read, with a periodic full
// sweep bounding growth from keys that are written once and never read
// again.
package cache

import (
	"sync"
	"time"

	"github.com/oriys/argus/internal/logging"
)

type entry[T any] struct {
	value     T
	createdAt time.Time
}

// Cache is a key-value store whose entries expire after a fixed TTL.
// All operations are safe for concurrent use.
type Cache[T any] struct {
	mu              sync.Mutex
	entries         map[string]entry[T]
	ttl             time.Duration
	cleanupInterval time.Duration
	lastCleanup     time.Time
}

// DefaultCleanupInterval is the sweep period used when New is given a
// non-positive cleanup interval.
const DefaultCleanupInterval = 5 * time.Minute

// New creates a cache whose entries expire ttl after they were set.
func New[T any](ttl, cleanupInterval time.Duration) *Cache[T] {
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	return &Cache[T]{
		entries:         make(map[string]entry[T]),
		ttl:             ttl,
		cleanupInterval: cleanupInterval,
		lastCleanup:     time.Now(),
	}
}

// Get retrieves the value associated with key. The second return value
// reports whether a live entry was found. Expired entries are deleted as
// a side effect of the read. An empty key is a no-op.
func (c *Cache[T]) Get(key string) (T, bool) {
	var zero T
	if key == "" {
		return zero, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.maybeCleanup(now)

	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.expired(e, now) {
		delete(c.entries, key)
		return zero, false
	}
	return e.value, true
}

// GetMany retrieves several keys at once. The returned map contains an
// entry only for keys that were present and unexpired. At most one sweep
// runs for the whole batch; expired keys are deleted as they are seen.
func (c *Cache[T]) GetMany(keys []string) map[string]T {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.maybeCleanup(now)

	result := make(map[string]T, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		e, ok := c.entries[key]
		if !ok {
			continue
		}
		if c.expired(e, now) {
			delete(c.entries, key)
			continue
		}
		result[key] = e.value
	}
	return result
}

// Set stores a value under key with a fresh timestamp, overwriting any
// previous entry. An empty key is a no-op.
func (c *Cache[T]) Set(key string, value T) {
	if key == "" {
		return
	}
	c.mu.Lock()
	c.entries[key] = entry[T]{value: value, createdAt: time.Now()}
	c.mu.Unlock()
}

// Len reports the number of entries currently held, including entries
// that have expired but not yet been swept.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache[T]) expired(e entry[T], now time.Time) bool {
	return now.Sub(e.createdAt) > c.ttl
}

// maybeCleanup sweeps expired entries when the cleanup interval has
// elapsed and the cache is non-empty. Caller must hold c.mu. A sweep can
// never fail; the cache stays usable with stale entries until the next
// sweep regardless.
func (c *Cache[T]) maybeCleanup(now time.Time) {
	if len(c.entries) == 0 || now.Sub(c.lastCleanup) <= c.cleanupInterval {
		return
	}

	cleaned := 0
	for k, e := range c.entries {
		if c.expired(e, now) {
			delete(c.entries, k)
			cleaned++
		}
	}
	c.lastCleanup = now

	if cleaned > 0 {
		logging.Op().Debug("cache sweep removed expired entries", "count", cleaned)
	}
}
