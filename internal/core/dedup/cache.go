package dedup

import (
	"sync"
	"time"

	"webhook-forwarder/internal/infra/metrics"
	"webhook-forwarder/internal/pkg/clock"
)

// ttlCache is the negative/positive hint cache behind the deduplicator,
// structured the way telhawk-stack's ack.Manager pairs a guarded map with a
// background sweep. Reads treat an expired entry as absent but never delete
// it; only the sweep removes entries.
type ttlCache struct {
	mu        sync.RWMutex
	entries   map[string]time.Time
	ttl       time.Duration
	softLimit int
	clock     clock.Clock
}

func newTTLCache(ttl time.Duration, softLimit int, clk clock.Clock) *ttlCache {
	return &ttlCache{
		entries:   make(map[string]time.Time),
		ttl:       ttl,
		softLimit: softLimit,
		clock:     clk,
	}
}

func (c *ttlCache) has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	expiresAt, ok := c.entries[key]
	if !ok {
		return false
	}
	return c.clock.Now().Before(expiresAt)
}

// put inserts key and opportunistically triggers an async sweep once the
// soft size budget is exceeded; it never blocks the caller on the sweep.
func (c *ttlCache) put(key string) {
	c.mu.Lock()
	c.entries[key] = c.clock.Now().Add(c.ttl)
	size := len(c.entries)
	c.mu.Unlock()

	metrics.DedupCacheSize.Set(float64(size))

	if c.softLimit > 0 && size > c.softLimit {
		go c.sweep()
	}
}

// sweep evicts every entry whose TTL has elapsed. Called opportunistically
// from put, and safe to run concurrently with itself (the second caller
// just does redundant, harmless work).
func (c *ttlCache) sweep() {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, expiresAt := range c.entries {
		if now.After(expiresAt) {
			delete(c.entries, key)
		}
	}
	metrics.DedupCacheSize.Set(float64(len(c.entries)))
}

// len reports the current entry count, expired or not; exposed for tests.
func (c *ttlCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
