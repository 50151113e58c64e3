package sharedtier

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/cachekit/gcache/key"
	"github.com/cachekit/gcache/metrics"
	"github.com/cachekit/gcache/serializer"
)

// LargeValueThreshold is the payload size above which deserialization on
// Get, and the transport write on Set, first take a slot in the offload
// semaphore.
const LargeValueThreshold = 50 * 1024 // 50 KiB

// MinWatermarkTTL is the default TTL of the watermark key: it must
// outlive the longest envelope TTL in use so that a watermark never
// expires before the entries it is meant to shadow. Four hours is a safe
// default for typical envelope TTLs measured in minutes; a deployment
// running longer envelope TTLs must raise it via WithWatermarkTTL.
const MinWatermarkTTL = 4 * time.Hour

// DefaultTransportTimeout bounds every RemoteClient call.
const DefaultTransportTimeout = 1 * time.Second

// Tier is the shared network cache tier: it serializes values, stores
// them with TTL, interleaves the watermark freshness check described in
// the watermark engine, and never lets a transport or codec failure
// reach the caller.
type Tier struct {
	client  RemoteClient
	ser     serializer.Serializer
	sink    metrics.Sink
	logger  *slog.Logger
	prefix  string
	timeout time.Duration

	watermarkTTL time.Duration
	offload      chan struct{}
}

// Option configures a Tier at construction.
type Option func(*Tier)

func WithSerializer(s serializer.Serializer) Option { return func(t *Tier) { t.ser = s } }
func WithSink(s metrics.Sink) Option                { return func(t *Tier) { t.sink = s } }
func WithLogger(l *slog.Logger) Option              { return func(t *Tier) { t.logger = l } }
func WithTransportTimeout(d time.Duration) Option   { return func(t *Tier) { t.timeout = d } }
func WithWatermarkTTL(d time.Duration) Option       { return func(t *Tier) { t.watermarkTTL = d } }
func WithOffloadConcurrency(n int) Option {
	return func(t *Tier) { t.offload = make(chan struct{}, n) }
}

// New constructs a shared tier over client, using prefix for canonical key
// rendering.
func New(client RemoteClient, prefix string, opts ...Option) *Tier {
	t := &Tier{
		client:       client,
		ser:          serializer.NewGob(),
		sink:         metrics.Noop{},
		logger:       slog.Default(),
		prefix:       prefix,
		timeout:      DefaultTransportTimeout,
		watermarkTTL: MinWatermarkTTL,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.offload == nil {
		t.offload = make(chan struct{}, runtime.GOMAXPROCS(0))
	}
	return t
}

func (t *Tier) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, t.timeout)
}

func (t *Tier) labels(k key.Key, layer string) metrics.Labels {
	return metrics.Labels{UseCase: k.UseCase, KeyType: k.KeyType, Layer: layer}
}

func (t *Tier) failOpen(ctx context.Context, stage string, k key.Key, err error) {
	l := t.labels(k, "")
	l.Stage = stage
	t.sink.IncError(l)
	t.logger.WarnContext(ctx, "gcache: shared tier fail-open", "stage", stage, "key_type", k.KeyType, "id", k.ID, "use_case", k.UseCase, "error", err)
}

// runOffloadable executes fn on the calling goroutine. When size exceeds
// LargeValueThreshold, fn first takes a slot in a GOMAXPROCS-sized
// semaphore, so only a bounded number of large-payload operations run at
// once. Serialization in Set always runs unthrottled, since the payload
// size is only known afterwards.
func (t *Tier) runOffloadable(size int, fn func() error) error {
	if size <= LargeValueThreshold {
		return fn()
	}

	t.offload <- struct{}{}
	defer func() { <-t.offload }()
	return fn()
}

// Get performs a shared-tier read. When trackForInvalidation is true, the
// envelope and watermark keys are fetched in a single MGet round trip and
// the envelope is rejected as a stale-miss if the watermark postdates it.
func (t *Tier) Get(ctx context.Context, k key.Key, trackForInvalidation bool) (any, bool) {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	envKey := k.Canonical(t.prefix)

	if !trackForInvalidation {
		data, err := t.client.Get(ctx, envKey)
		if errors.Is(err, ErrNotFound) {
			return nil, false
		}
		if err != nil {
			t.failOpen(ctx, "shared_get", k, err)
			return nil, false
		}
		return t.deserialize(ctx, k, data)
	}

	wmKey := key.WatermarkKey(t.prefix, k.KeyType, k.ID)
	results, err := t.client.MGet(ctx, envKey, wmKey)
	if err != nil {
		t.failOpen(ctx, "shared_get", k, err)
		return nil, false
	}
	if len(results) != 2 || results[0] == nil {
		return nil, false
	}

	env, err := decodeEnvelope(results[0])
	if err != nil {
		t.failOpen(ctx, "de", k, err)
		return nil, false
	}

	if results[1] != nil {
		wm, err := decodeWatermark(results[1])
		if err != nil {
			t.failOpen(ctx, "de", k, err)
			return nil, false
		}
		if wm > env.createdAtMs {
			// Stale-miss: a later invalidation shadows this envelope.
			// Do not repopulate the local tier.
			return nil, false
		}
	}

	return t.deserialize(ctx, k, env.payload)
}

func (t *Tier) deserialize(ctx context.Context, k key.Key, payload []byte) (any, bool) {
	var value any
	start := time.Now()
	err := t.runOffloadable(len(payload), func() error {
		return t.ser.Deserialize(payload, &value)
	})
	t.sink.ObserveSerializationTimer(metrics.Labels{UseCase: k.UseCase, KeyType: k.KeyType, Direction: "de"}, time.Since(start))
	if err != nil {
		t.failOpen(ctx, "de", k, err)
		return nil, false
	}
	return value, true
}

// Set writes value under k's canonical key with the given TTL. When
// trackForInvalidation is true the value is wrapped in an envelope
// carrying the write's creation timestamp; otherwise it is stored bare
// and watermark checks never apply to it. The write is not cancelled
// together with ctx; only the transport timeout bounds it.
func (t *Tier) Set(ctx context.Context, k key.Key, value any, ttl time.Duration, trackForInvalidation bool) {
	ctx, cancel := t.withTimeout(context.WithoutCancel(ctx))
	defer cancel()

	start := time.Now()
	payload, err := t.ser.Serialize(value)
	t.sink.ObserveSerializationTimer(metrics.Labels{UseCase: k.UseCase, KeyType: k.KeyType, Direction: "ser"}, time.Since(start))
	if err != nil {
		t.failOpen(ctx, "ser", k, err)
		return
	}

	wire := payload
	if trackForInvalidation {
		wire = encodeEnvelope(envelope{createdAtMs: time.Now().UnixMilli(), payload: payload})
	}

	t.sink.ObserveSize(metrics.Labels{UseCase: k.UseCase, KeyType: k.KeyType}, len(wire))

	err = t.runOffloadable(len(wire), func() error {
		return t.client.Set(ctx, k.Canonical(t.prefix), wire, ttl)
	})
	if err != nil {
		t.failOpen(ctx, "shared_set", k, err)
	}
}

// Delete removes k's envelope directly, fail-open.
func (t *Tier) Delete(ctx context.Context, k key.Key) {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	if err := t.client.Delete(ctx, k.Canonical(t.prefix)); err != nil {
		t.failOpen(ctx, "shared_delete", k, err)
	}
}

// WriteWatermark records now+bufferMs as the invalidation boundary for
// (keyType, id). The watermark key's TTL always uses t.watermarkTTL,
// independent of any single call's envelope TTL.
func (t *Tier) WriteWatermark(ctx context.Context, keyType, id string, bufferMs int64) error {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	wmKey := key.WatermarkKey(t.prefix, keyType, id)
	value := time.Now().UnixMilli() + bufferMs
	data := encodeWatermark(value)

	if err := t.client.Set(ctx, wmKey, data, t.watermarkTTL); err != nil {
		k := key.Key{KeyType: keyType, ID: id, UseCase: key.WatermarkUseCase}
		t.failOpen(ctx, "watermark", k, err)
		return fmt.Errorf("sharedtier: write watermark: %w", err)
	}
	return nil
}

// FlushAll clears every key on the shared tier, fail-open.
func (t *Tier) FlushAll(ctx context.Context) {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	if err := t.client.FlushAll(ctx); err != nil {
		t.logger.WarnContext(ctx, "gcache: shared tier flushall failed", "error", err)
	}
}

func encodeWatermark(ms int64) []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, uint64(ms))
	return out
}

func decodeWatermark(data []byte) (int64, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("sharedtier: malformed watermark (%d bytes)", len(data))
	}
	return int64(binary.BigEndian.Uint64(data)), nil
}
