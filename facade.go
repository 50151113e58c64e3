// Package gcache is a read-through, multi-tier function-result cache.
// It wraps a local in-process tier and a shared network tier behind one
// descriptor-driven call policy, invalidates in O(1) per entity via
// monotonic watermarks instead of key scans, and scopes caching
// per-call-tree through context.Context rather than a global switch.
package gcache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/cachekit/gcache/bridge"
	"github.com/cachekit/gcache/chain"
	"github.com/cachekit/gcache/controller"
	"github.com/cachekit/gcache/key"
	"github.com/cachekit/gcache/localtier"
	"github.com/cachekit/gcache/sharedtier"
	"github.com/cachekit/gcache/watermark"
)

// Facade is the assembled cache: one chain, one controller, one
// invalidation engine, and one sync-call-path worker pool.
type Facade struct {
	cfg       Config
	id        uuid.UUID
	local     *localtier.Tier
	chain     *chain.Chain
	ctrl      *controller.Controller
	watermark *watermark.Engine
	bridge    *bridge.Pool
	logger    *slog.Logger

	mu          sync.RWMutex
	descriptors map[string]*key.Descriptor
}

var current atomic.Pointer[Facade]
var registerMu sync.Mutex

// New assembles a Facade from opts but does not register it as the
// process-wide instance; call Register explicitly, or use Open for the
// common construct-and-register case.
func New(opts ...Option) (*Facade, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	remote, err := resolveRemoteClient(cfg)
	if err != nil {
		return nil, err
	}

	// Every facade instance gets a random identity so its log lines can
	// be told apart when a process opens more than one over its
	// lifetime (construct, Shutdown, construct again).
	instanceID := uuid.New()
	logger := cfg.Logger.With("facade_instance", instanceID.String())

	local := localtier.New(cfg.LocalCapacity)
	shared := sharedtier.New(remote, cfg.Prefix,
		sharedtier.WithSerializer(cfg.Serializer),
		sharedtier.WithSink(cfg.Sink),
		sharedtier.WithLogger(logger),
		sharedtier.WithWatermarkTTL(cfg.WatermarkTTL),
	)
	c := chain.New(cfg.Prefix, local, shared)

	var bridgeOpts []bridge.Option
	if cfg.RemoteClientFactory != nil {
		factory := cfg.RemoteClientFactory
		bridgeOpts = append(bridgeOpts, bridge.WithClientFactory(func() (sharedtier.RemoteClient, error) {
			rc, err := factory()
			if err != nil {
				return nil, err
			}
			return applyRateLimit(cfg, rc), nil
		}))
	}

	return &Facade{
		cfg:         cfg,
		id:          instanceID,
		local:       local,
		chain:       c,
		ctrl:        controller.New(c, controller.WithSink(cfg.Sink), controller.WithLogger(logger)),
		watermark:   watermark.New(shared, watermark.WithSink(cfg.Sink), watermark.WithLogger(logger)),
		bridge:      bridge.NewPool(cfg.BridgeWorkers, bridgeOpts...),
		logger:      logger,
		descriptors: make(map[string]*key.Descriptor),
	}, nil
}

func resolveRemoteClient(cfg Config) (sharedtier.RemoteClient, error) {
	client, err := baseRemoteClient(cfg)
	if err != nil {
		return nil, err
	}
	return applyRateLimit(cfg, client), nil
}

func baseRemoteClient(cfg Config) (sharedtier.RemoteClient, error) {
	if cfg.RemoteClient != nil {
		return cfg.RemoteClient, nil
	}
	if cfg.RedisClient != nil {
		return sharedtier.NewRedisClient(cfg.RedisClient), nil
	}
	if cfg.RedisURL != "" {
		return sharedtier.NewRedisClientFromURL(cfg.RedisURL)
	}
	if cfg.RemoteClientFactory != nil {
		return cfg.RemoteClientFactory()
	}
	if cfg.LocalOnly {
		return sharedtier.NoopClient{}, nil
	}
	return nil, ErrNoRemoteClient
}

// applyRateLimit wraps client in a sharedtier.RateLimitedClient when
// WithRateLimit was supplied, otherwise returns it unchanged.
func applyRateLimit(cfg Config, client sharedtier.RemoteClient) sharedtier.RemoteClient {
	if cfg.RateLimitRPS <= 0 {
		return client
	}
	return sharedtier.NewRateLimitedClient(client, cfg.RateLimitRPS, cfg.RateLimitBurst)
}

// Open builds a Facade and registers it as the process-wide instance in
// one step, the common case for a process that wants exactly one cache.
func Open(opts ...Option) (*Facade, error) {
	f, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if err := Register(f); err != nil {
		return nil, err
	}
	return f, nil
}

// Register installs f as the process-wide Facade instance. It fails if
// one is already registered; call Instance().Shutdown() and then
// Replace, or design the process around exactly one Open call.
func Register(f *Facade) error {
	registerMu.Lock()
	defer registerMu.Unlock()
	if current.Load() != nil {
		return ErrSingletonViolation
	}
	current.Store(f)
	return nil
}

// Replace forcibly installs f as the process-wide instance regardless of
// whether one is already registered, shutting down and discarding the
// previous instance's bridge pool. Intended for tests that need a fresh
// facade per test case.
func Replace(f *Facade) {
	registerMu.Lock()
	defer registerMu.Unlock()
	if prev := current.Load(); prev != nil {
		prev.bridge.Shutdown()
	}
	current.Store(f)
}

// Instance returns the process-wide Facade, if one has been registered.
func Instance() (*Facade, bool) {
	f := current.Load()
	return f, f != nil
}

// RegisterDescriptor validates and records d against this facade. A
// descriptor using the reserved watermark use_case, or duplicating an
// already-registered (key_type, use_case) pair, is rejected.
func (f *Facade) RegisterDescriptor(d *key.Descriptor) error {
	if d.UseCase == key.WatermarkUseCase {
		return ErrReservedUseCase
	}

	id := descriptorID(d.KeyType, d.UseCase)

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.descriptors[id]; exists {
		return ErrDuplicateDescriptor
	}
	f.descriptors[id] = d
	return nil
}

func descriptorID(keyType, useCase string) string {
	return keyType + "\x00" + useCase
}

// Cached runs d's cached-call policy for one invocation: it reads
// through the cache chain when the call context carries an enabled
// scope, and otherwise, or on a miss, calls fallback directly. Go has no
// generic method type parameters, so Cached is a free function
// parameterized on the fallback's result type rather than a Facade
// method.
func Cached[T any](ctx context.Context, f *Facade, d *key.Descriptor, args map[string]any, fallback func(context.Context) (T, error)) (T, error) {
	return cachedWith(ctx, f.ctrl, d, args, fallback)
}

func cachedWith[T any](ctx context.Context, ctrl *controller.Controller, d *key.Descriptor, args map[string]any, fallback func(context.Context) (T, error)) (T, error) {
	v, err := ctrl.Call(ctx, d, args, func(ctx context.Context) (any, error) {
		return fallback(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("gcache: cached value for %s/%s has type %T, want %T", d.KeyType, d.UseCase, v, zero)
	}
	return typed, nil
}

// workerController builds a Controller that reads and writes the shared
// tier through client instead of f's own, so a bridge worker holding a
// dedicated connection pool never touches the one the facade's other
// callers share. The local tier is still shared: it is process-local
// memory, not a pooled connection, and isolating it per worker would
// only fragment the cache for no benefit.
func (f *Facade) workerController(client sharedtier.RemoteClient) *controller.Controller {
	shared := sharedtier.New(client, f.cfg.Prefix,
		sharedtier.WithSerializer(f.cfg.Serializer),
		sharedtier.WithSink(f.cfg.Sink),
		sharedtier.WithLogger(f.logger),
		sharedtier.WithWatermarkTTL(f.cfg.WatermarkTTL),
	)
	c := chain.New(f.cfg.Prefix, f.local, shared)
	return controller.New(c, controller.WithSink(f.cfg.Sink), controller.WithLogger(f.logger))
}

// CachedSync runs Cached on the sync call path's bounded worker pool
// instead of the calling goroutine, for callers outside an existing
// scope-carrying execution context. A call already running on a bridge
// worker is rejected with bridge.ErrReentrant rather than deadlocking the
// pool. When the pool was built WithRemoteClientFactory, the call uses
// the executing worker's own shared-tier client instead of f's.
func CachedSync[T any](ctx context.Context, f *Facade, d *key.Descriptor, args map[string]any, fallback func(context.Context) (T, error)) (T, error) {
	v, err := f.bridge.Submit(ctx, func(ctx context.Context) (any, error) {
		ctrl := f.ctrl
		if client, ok := bridge.ClientFromContext(ctx); ok {
			ctrl = f.workerController(client)
		}
		return cachedWith(ctx, ctrl, d, args, fallback)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Invalidate shadows every tracked entry for (keyType, id) written
// before now+bufferMs.
func (f *Facade) Invalidate(ctx context.Context, keyType, id string, bufferMs int64) error {
	return f.watermark.Invalidate(ctx, keyType, id, bufferMs)
}

// Flushall clears every cached entry on both tiers.
func (f *Facade) Flushall(ctx context.Context) {
	f.chain.FlushAll(ctx)
}

// Remove deletes one specific key from both tiers directly, bypassing
// the watermark mechanism entirely. Use Invalidate for entity-wide
// invalidation; Remove is for evicting one exact (key_type, id, args,
// use_case) combination.
func (f *Facade) Remove(ctx context.Context, k key.Key) {
	f.chain.Remove(ctx, k)
}

// ID returns this facade instance's random identity, used to correlate
// its log lines across a process that opens more than one over its
// lifetime.
func (f *Facade) ID() string { return f.id.String() }

// Bridge exposes the sync call path's worker pool directly, for callers
// that need to route arbitrary work (not only Cached calls) through it.
func (f *Facade) Bridge() *bridge.Pool { return f.bridge }

// Shutdown stops the sync call path's worker pool and waits for
// in-flight work to finish. It does not clear cached data. If f is the
// registered process-wide instance, Shutdown also clears that
// registration so a subsequent Open or Register succeeds.
func (f *Facade) Shutdown() {
	f.bridge.Shutdown()
	registerMu.Lock()
	defer registerMu.Unlock()
	current.CompareAndSwap(f, nil)
}
