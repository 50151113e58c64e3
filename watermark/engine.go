// Package watermark implements O(1) invalidation: recording a monotonic
// boundary timestamp per (key_type, id) that the shared tier consults on
// every tracked read, instead of scanning or enumerating affected keys.
package watermark

import (
	"context"
	"log/slog"

	"github.com/cachekit/gcache/metrics"
	"github.com/cachekit/gcache/sharedtier"
)

// Engine is the entry point for invalidating every tracked shared-tier
// entry for an entity. It does not clear the cache; Facade.Flushall does.
type Engine struct {
	shared *sharedtier.Tier
	logger *slog.Logger
	sink   metrics.Sink
}

// Option configures an Engine at construction.
type Option func(*Engine)

func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }
func WithSink(s metrics.Sink) Option   { return func(e *Engine) { e.sink = s } }

// New builds an Engine over the shared tier that stores watermarks.
func New(shared *sharedtier.Tier, opts ...Option) *Engine {
	e := &Engine{shared: shared, logger: slog.Default(), sink: metrics.Noop{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Invalidate shadows every tracked entry for (keyType, id) written before
// now+bufferMs. bufferMs lets a caller invalidate slightly into the
// future to cover writes racing a clock-skewed invalidation signal; it is
// typically small (tens to low hundreds of milliseconds) or zero.
//
// This does not touch the local tier: a process holding a stale local
// entry keeps serving it until that entry's own TTL expires. The
// watermark only guarantees the shared tier stops handing out stale
// envelopes and stops newly populating other processes' local tiers from
// them.
func (e *Engine) Invalidate(ctx context.Context, keyType, id string, bufferMs int64) error {
	if err := e.shared.WriteWatermark(ctx, keyType, id, bufferMs); err != nil {
		return err
	}
	e.sink.IncInvalidation(metrics.Labels{KeyType: keyType})
	e.logger.InfoContext(ctx, "gcache: invalidated", "key_type", keyType, "id", id, "buffer_ms", bufferMs)
	return nil
}
