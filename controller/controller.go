// Package controller implements the cached-call policy: given a
// descriptor and the arguments of one call, it resolves whether caching
// applies at all, builds the key, resolves per-layer configuration,
// applies ramp gating, and reads through the cache chain before falling
// back to the wrapped function.
package controller

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/cachekit/gcache/chain"
	"github.com/cachekit/gcache/key"
	"github.com/cachekit/gcache/metrics"
	"github.com/cachekit/gcache/scope"
)

// ConfigResolver supplies the per-call TTL/ramp configuration for a key,
// overriding a descriptor's static default when present. A deployment
// with a dynamic configuration source (feature flags, a config service)
// implements this; the zero value Controller falls back to the
// descriptor's DefaultConfig.
type ConfigResolver interface {
	Resolve(ctx context.Context, k key.Key) (key.Config, bool)
}

// Fallback is the wrapped function a cached call falls back to on a miss
// or when caching does not apply.
type Fallback func(ctx context.Context) (any, error)

// Controller runs the cached-call policy over one cache chain.
type Controller struct {
	chain    *chain.Chain
	resolver ConfigResolver
	sink     metrics.Sink
	logger   *slog.Logger
	rand     func() float64
}

// Option configures a Controller at construction.
type Option func(*Controller)

func WithConfigResolver(r ConfigResolver) Option { return func(c *Controller) { c.resolver = r } }
func WithSink(s metrics.Sink) Option             { return func(c *Controller) { c.sink = s } }
func WithLogger(l *slog.Logger) Option           { return func(c *Controller) { c.logger = l } }

// WithRandFunc overrides the ramp-gating random source, for deterministic
// tests.
func WithRandFunc(f func() float64) Option { return func(c *Controller) { c.rand = f } }

// New builds a Controller over c.
func New(c *chain.Chain, opts ...Option) *Controller {
	ctrl := &Controller{
		chain:  c,
		sink:   metrics.Noop{},
		logger: slog.Default(),
		rand:   rand.Float64,
	}
	for _, opt := range opts {
		opt(ctrl)
	}
	return ctrl
}

func labelsFor(k key.Key) metrics.Labels {
	return metrics.Labels{UseCase: k.UseCase, KeyType: k.KeyType}
}

// layerIfHit returns a single-element slice holding the layer a read hit
// on, or nil on a total miss, so the caller can append it to the missed
// layers and tag a get_timer observation for every layer consulted.
func layerIfHit(res chain.ReadResult) []key.Layer {
	if !res.Hit {
		return nil
	}
	return []key.Layer{res.Layer}
}

// Call runs the cached-call policy for one invocation of a descriptor
// against fallback:
//
//  1. count the request
//  2. bypass entirely outside an enabled cache scope
//  3. build the key; a build failure bypasses to fallback
//  4. resolve per-layer config; its absence bypasses to fallback
//  5. gate each configured layer by its ramp percentage
//  6. read through the chain
//  7. on a total miss, call fallback and populate every participating
//     layer with its result
func (c *Controller) Call(ctx context.Context, d *key.Descriptor, args map[string]any, fallback Fallback) (any, error) {
	c.sink.IncRequest(metrics.Labels{UseCase: d.UseCase, KeyType: d.KeyType})

	switch scope.Get(ctx) {
	case scope.StateEnabled:
		// continues below
	case scope.StateDisabled:
		c.sink.IncDisabled(metrics.Labels{UseCase: d.UseCase, KeyType: d.KeyType, Reason: "explicitly_disabled"})
		return fallback(ctx)
	default:
		c.sink.IncDisabled(metrics.Labels{UseCase: d.UseCase, KeyType: d.KeyType, Reason: "not_enabled"})
		return fallback(ctx)
	}

	k, err := d.Build(args)
	if err != nil {
		c.sink.IncDisabled(metrics.Labels{UseCase: d.UseCase, KeyType: d.KeyType, Reason: "key_error"})
		c.logger.WarnContext(ctx, "gcache: key build failed, bypassing cache", "descriptor", d.KeyType, "error", err)
		return fallback(ctx)
	}

	cfg, ok := c.resolveConfig(ctx, k, d)
	if !ok {
		c.sink.IncDisabled(metrics.Labels{UseCase: k.UseCase, KeyType: k.KeyType, Reason: "no_config"})
		return fallback(ctx)
	}

	participation := c.gate(cfg)
	if len(participation) == 0 {
		c.sink.IncDisabled(metrics.Labels{UseCase: k.UseCase, KeyType: k.KeyType, Reason: "ramped_off"})
		return fallback(ctx)
	}

	start := time.Now()
	res := c.chain.Read(ctx, k, participation, d.TrackForInvalidation)
	elapsed := time.Since(start)

	consulted := append(append([]key.Layer{}, res.MissedLayers...), layerIfHit(res)...)
	for _, layer := range consulted {
		l := labelsFor(k)
		l.Layer = string(layer)
		c.sink.ObserveGetTimer(l, elapsed)
	}

	for _, layer := range res.MissedLayers {
		l := labelsFor(k)
		l.Layer = string(layer)
		c.sink.IncMiss(l)
	}

	if res.Hit {
		return res.Value, nil
	}

	fbStart := time.Now()
	value, err := fallback(ctx)
	c.sink.ObserveFallbackTimer(labelsFor(k), time.Since(fbStart))
	if err != nil {
		return nil, err
	}

	c.chain.Store(ctx, k, value, participation, d.TrackForInvalidation)
	return value, nil
}

func (c *Controller) resolveConfig(ctx context.Context, k key.Key, d *key.Descriptor) (key.Config, bool) {
	if c.resolver != nil {
		if cfg, ok := c.resolver.Resolve(ctx, k); ok {
			return cfg, true
		}
	}
	if d.DefaultConfig != nil {
		return *d.DefaultConfig, true
	}
	return key.Config{}, false
}

// gate applies ramp gating independently per layer: a layer with Ramp
// 100 always participates, Ramp 0 never does, and anything between is a
// per-call coin flip so that a staged rollout only needs a single
// percentage knob.
func (c *Controller) gate(cfg key.Config) chain.Participation {
	out := make(chain.Participation, 2)
	for _, l := range [...]key.Layer{key.LayerLocal, key.LayerRemote} {
		lc := cfg.Get(l)
		if !lc.Enabled() {
			continue
		}
		if lc.Ramp >= 100 || c.rand()*100 < float64(lc.Ramp) {
			out[l] = lc
		}
	}
	return out
}
