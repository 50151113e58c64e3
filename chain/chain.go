// Package chain implements the read-through cache chain: an ordered walk
// over the local and shared tiers that populates earlier tiers on a hit
// from a later one.
package chain

import (
	"context"

	"github.com/cachekit/gcache/key"
	"github.com/cachekit/gcache/localtier"
	"github.com/cachekit/gcache/sharedtier"
)

// Chain orders LOCAL ahead of REMOTE, per the cache chain's fixed tier
// order.
type Chain struct {
	prefix string
	local  *localtier.Tier
	shared *sharedtier.Tier
}

// New assembles a chain over the given tiers.
func New(prefix string, local *localtier.Tier, shared *sharedtier.Tier) *Chain {
	return &Chain{prefix: prefix, local: local, shared: shared}
}

// Participation is the resolved per-layer TTL/ramp outcome for one call:
// a layer present in the map participates, one absent does not.
type Participation map[key.Layer]key.LayerConfig

// ReadResult reports what the chain found and which layers were
// consulted and missed, for the controller's per-layer miss accounting.
type ReadResult struct {
	Value        any
	Hit          bool
	Layer        key.Layer // layer the hit was served from
	MissedLayers []key.Layer
}

// Read asks each participating tier in order, returning on the first hit
// after populating every earlier participating tier with the value at its
// own configured TTL.
func (c *Chain) Read(ctx context.Context, k key.Key, participation Participation, trackForInvalidation bool) ReadResult {
	var missed []key.Layer

	if lc, ok := participation[key.LayerLocal]; ok {
		if v, hit := c.local.Get(k.Canonical(c.prefix)); hit {
			return ReadResult{Value: v, Hit: true, Layer: key.LayerLocal}
		}
		_ = lc
		missed = append(missed, key.LayerLocal)
	}

	if lc, ok := participation[key.LayerRemote]; ok {
		if v, hit := c.shared.Get(ctx, k, trackForInvalidation); hit {
			if localLC, ok := participation[key.LayerLocal]; ok {
				c.local.Set(k.Canonical(c.prefix), v, localLC.TTL)
			}
			return ReadResult{Value: v, Hit: true, Layer: key.LayerRemote, MissedLayers: missed}
		}
		_ = lc
		missed = append(missed, key.LayerRemote)
	}

	return ReadResult{Hit: false, MissedLayers: missed}
}

// Store populates every participating tier with value at its own
// configured TTL, used after a fallback resolves a total miss.
func (c *Chain) Store(ctx context.Context, k key.Key, value any, participation Participation, trackForInvalidation bool) {
	if lc, ok := participation[key.LayerLocal]; ok {
		c.local.Set(k.Canonical(c.prefix), value, lc.TTL)
	}
	if lc, ok := participation[key.LayerRemote]; ok {
		c.shared.Set(ctx, k, value, lc.TTL, trackForInvalidation)
	}
}

// Remove deletes k from every tier directly, for the facade's Remove
// entry point.
func (c *Chain) Remove(ctx context.Context, k key.Key) {
	c.local.Delete(k.Canonical(c.prefix))
	c.shared.Delete(ctx, k)
}

// FlushAll clears both tiers.
func (c *Chain) FlushAll(ctx context.Context) {
	c.local.Clear()
	c.shared.FlushAll(ctx)
}
