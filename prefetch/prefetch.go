// Package prefetch offers an optional warming helper built on
// singleflight request collapsing. It sits outside the mandatory
// read-through fallback path: the controller's own fallback never
// deduplicates concurrent misses against each other, since two callers
// racing a fallback for the same key is an accepted, explicit behavior.
// Prefetch exists for callers who want to warm an entry proactively and
// are happy to share one in-flight origin call across concurrent
// prefetch requests for the same key.
package prefetch

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/cachekit/gcache/chain"
	"github.com/cachekit/gcache/key"
)

// Warmer collapses concurrent Warm calls for the same canonical key into
// a single fallback invocation.
type Warmer struct {
	chain *chain.Chain
	group singleflight.Group
}

// New builds a Warmer over chain, populating the same tiers a normal
// cached call would.
func New(c *chain.Chain) *Warmer {
	return &Warmer{chain: c}
}

// Warm fetches value via fallback if k is not already cached at any
// participating layer, and stores it at every participating layer.
// Concurrent Warm calls for the same k share one fallback invocation.
func (w *Warmer) Warm(ctx context.Context, k key.Key, participation chain.Participation, trackForInvalidation bool, fallback func(context.Context) (any, error)) (any, error) {
	if res := w.chain.Read(ctx, k, participation, trackForInvalidation); res.Hit {
		return res.Value, nil
	}

	v, err, _ := w.group.Do(k.Canonical(""), func() (any, error) {
		return fallback(ctx)
	})
	if err != nil {
		return nil, err
	}

	w.chain.Store(ctx, k, v, participation, trackForInvalidation)
	return v, nil
}
