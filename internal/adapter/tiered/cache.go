// Package tiered layers an in-process cache over a shared one. gitbridge
// keeps idempotency records local (ristretto) for the hot path while the
// NATS KV tier makes them visible to every replica.
package tiered

import (
	"context"
	"time"

	"github.com/gitbridge/gitbridge/internal/port/cache"
)

// Cache reads through local into shared and writes through to both. A record
// written by one replica is found by another on its first lookup and then
// served locally.
type Cache struct {
	local       cache.Cache
	shared      cache.Cache
	backfillTTL time.Duration
}

// New combines a local and a shared cache. backfillTTL bounds how long a
// record copied out of the shared tier lives locally.
func New(local, shared cache.Cache, backfillTTL time.Duration) *Cache {
	return &Cache{local: local, shared: shared, backfillTTL: backfillTTL}
}

// Get returns the record from the local tier when present, otherwise from
// the shared tier, copying a shared hit into the local tier.
func (c *Cache) Get(ctx context.Context, key string) (data []byte, ok bool, err error) {
	if data, ok, err = c.local.Get(ctx, key); err != nil || ok {
		return data, ok, err
	}

	data, ok, err = c.shared.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}

	// A backfill failure only costs the next lookup a shared-tier read.
	_ = c.local.Set(ctx, key, data, c.backfillTTL)
	return data, true, nil
}

// Set writes the record to the shared tier first so other replicas never
// observe a record this replica has but they cannot see.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.shared.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	return c.local.Set(ctx, key, value, ttl)
}

// Delete removes the record from both tiers.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.local.Delete(ctx, key); err != nil {
		return err
	}
	return c.shared.Delete(ctx, key)
}
