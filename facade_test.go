package gcache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cachekit/gcache/key"
	"github.com/cachekit/gcache/serializer"
	"github.com/cachekit/gcache/sharedtier"
)

func init() {
	serializer.RegisterGobType("")
}

func newTestFacade(t *testing.T) *Facade {
	t.Helper()
	f, err := New(WithLocalOnly(), WithPrefix("test"), WithBridgeWorkers(2))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(f.Shutdown)
	return f
}

func userDescriptor() *key.Descriptor {
	return &key.Descriptor{
		KeyType:              "user_id",
		UseCase:              "profile",
		IDParam:              "id",
		TrackForInvalidation: true,
		DefaultConfig: &key.Config{
			Local: key.LayerConfig{TTL: time.Minute, Ramp: 100},
		},
	}
}

func TestOpen_SecondCallFailsSingletonViolation(t *testing.T) {
	f1, err := Open(WithLocalOnly())
	if err != nil {
		t.Fatalf("first Open() error = %v", err)
	}
	defer f1.Shutdown()

	_, err = Open(WithLocalOnly())
	if err != ErrSingletonViolation {
		t.Fatalf("second Open() error = %v, want ErrSingletonViolation", err)
	}
}

func TestFacade_Shutdown_ClearsSingletonSlot(t *testing.T) {
	f1, err := Open(WithLocalOnly())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	f1.Shutdown()

	f2, err := Open(WithLocalOnly())
	if err != nil {
		t.Fatalf("Open() after shutdown error = %v", err)
	}
	defer f2.Shutdown()

	if _, ok := Instance(); !ok {
		t.Fatalf("expected an instance to be registered after reopening")
	}
}

func TestFacade_RegisterDescriptor_RejectsReservedUseCase(t *testing.T) {
	f := newTestFacade(t)
	d := &key.Descriptor{KeyType: "user_id", UseCase: "watermark", IDParam: "id"}

	if err := f.RegisterDescriptor(d); err != ErrReservedUseCase {
		t.Fatalf("RegisterDescriptor() error = %v, want ErrReservedUseCase", err)
	}
}

func TestFacade_RegisterDescriptor_RejectsDuplicate(t *testing.T) {
	f := newTestFacade(t)
	d1 := userDescriptor()
	d2 := userDescriptor()

	if err := f.RegisterDescriptor(d1); err != nil {
		t.Fatalf("first RegisterDescriptor() error = %v", err)
	}
	if err := f.RegisterDescriptor(d2); err != ErrDuplicateDescriptor {
		t.Fatalf("second RegisterDescriptor() error = %v, want ErrDuplicateDescriptor", err)
	}
}

func TestCached_MissThenHit(t *testing.T) {
	f := newTestFacade(t)
	d := userDescriptor()
	ctx, _ := Enable(context.Background(), true)

	var calls atomic.Int32
	fallback := func(ctx context.Context) (string, error) {
		calls.Add(1)
		return "resolved", nil
	}

	v, err := Cached(ctx, f, d, map[string]any{"id": "42"}, fallback)
	if err != nil || v != "resolved" {
		t.Fatalf("first Cached() = (%v, %v)", v, err)
	}

	v, err = Cached(ctx, f, d, map[string]any{"id": "42"}, fallback)
	if err != nil || v != "resolved" {
		t.Fatalf("second Cached() = (%v, %v)", v, err)
	}
	if calls.Load() != 1 {
		t.Fatalf("fallback invoked %d times, want 1", calls.Load())
	}
}

func TestCached_DisabledOutsideScope(t *testing.T) {
	f := newTestFacade(t)
	d := userDescriptor()

	var calls atomic.Int32
	fallback := func(ctx context.Context) (string, error) {
		calls.Add(1)
		return "v", nil
	}

	_, _ = Cached(context.Background(), f, d, map[string]any{"id": "1"}, fallback)
	_, _ = Cached(context.Background(), f, d, map[string]any{"id": "1"}, fallback)

	if calls.Load() != 2 {
		t.Fatalf("expected caching disabled outside Enable scope, fallback called %d times, want 2", calls.Load())
	}
}

func TestFacade_Invalidate_ForcesStaleMiss(t *testing.T) {
	f, err := New(WithRemoteClient(newMemClient()), WithPrefix("test"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(f.Shutdown)
	d := userDescriptor()
	// The local tier is not watermark-checked, so only the shared tier
	// takes part in this call.
	d.DefaultConfig = &key.Config{Remote: key.LayerConfig{TTL: time.Minute, Ramp: 100}}
	ctx, _ := Enable(context.Background(), true)

	results := []string{"first", "second"}
	var call int
	fallback := func(ctx context.Context) (string, error) {
		v := results[call]
		call++
		return v, nil
	}

	v, _ := Cached(ctx, f, d, map[string]any{"id": "42"}, fallback)
	if v != "first" {
		t.Fatalf("Cached() = %v, want first", v)
	}

	time.Sleep(5 * time.Millisecond)
	if err := f.Invalidate(ctx, "user_id", "42", 0); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}

	v, _ = Cached(ctx, f, d, map[string]any{"id": "42"}, fallback)
	if v != "second" {
		t.Fatalf("Cached() after Invalidate = %v, want second (cache repopulated)", v)
	}
}

func TestFacade_Flushall_ClearsCachedValues(t *testing.T) {
	f := newTestFacade(t)
	d := userDescriptor()
	ctx, _ := Enable(context.Background(), true)

	var calls atomic.Int32
	fallback := func(ctx context.Context) (string, error) {
		calls.Add(1)
		return "v", nil
	}

	_, _ = Cached(ctx, f, d, map[string]any{"id": "1"}, fallback)
	f.Flushall(ctx)
	_, _ = Cached(ctx, f, d, map[string]any{"id": "1"}, fallback)

	if calls.Load() != 2 {
		t.Fatalf("expected fallback to run again after Flushall, got %d calls", calls.Load())
	}
}

func TestCachedSync_ReentrantCallRejected(t *testing.T) {
	f := newTestFacade(t)
	d := userDescriptor()
	ctx, _ := Enable(context.Background(), true)

	var innerErr error
	_, err := CachedSync(ctx, f, d, map[string]any{"id": "1"}, func(ctx context.Context) (string, error) {
		_, innerErr = CachedSync(ctx, f, d, map[string]any{"id": "2"}, func(ctx context.Context) (string, error) {
			return "nested", nil
		})
		return "outer", nil
	})
	if err != nil {
		t.Fatalf("outer CachedSync() error = %v", err)
	}
	if innerErr != ErrReentrantSyncCall {
		t.Fatalf("inner CachedSync() error = %v, want ErrReentrantSyncCall", innerErr)
	}
}

func TestCachedSync_UsesRemoteClientFactoryForBridgeWorkers(t *testing.T) {
	var factoryCalls atomic.Int32
	f, err := New(
		WithPrefix("factory"),
		WithBridgeWorkers(2),
		WithRemoteClientFactory(func() (sharedtier.RemoteClient, error) {
			factoryCalls.Add(1)
			return sharedtier.NoopClient{}, nil
		}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(f.Shutdown)

	d := userDescriptor()
	ctx, _ := Enable(context.Background(), true)

	v, err := CachedSync(ctx, f, d, map[string]any{"id": "1"}, func(ctx context.Context) (string, error) {
		return "v", nil
	})
	if err != nil || v != "v" {
		t.Fatalf("CachedSync() = (%v, %v)", v, err)
	}

	if factoryCalls.Load() == 0 {
		t.Fatalf("expected RemoteClientFactory to be invoked for the main chain and/or the bridge worker, got 0 calls")
	}
}

func TestFacade_New_RejectsMissingRemoteTransport(t *testing.T) {
	_, err := New()
	if err != ErrNoRemoteClient {
		t.Fatalf("New() error = %v, want ErrNoRemoteClient", err)
	}
}

// memClient is an in-memory RemoteClient for tests that need a shared
// tier which really stores envelopes and watermarks.
type memClient struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemClient() *memClient { return &memClient{data: make(map[string][]byte)} }

func (c *memClient) Get(ctx context.Context, k string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[k]
	if !ok {
		return nil, sharedtier.ErrNotFound
	}
	return v, nil
}

func (c *memClient) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = c.data[k]
	}
	return out, nil
}

func (c *memClient) Set(ctx context.Context, k string, v []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[k] = v
	return nil
}

func (c *memClient) Delete(ctx context.Context, k string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, k)
	return nil
}

func (c *memClient) FlushAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string][]byte)
	return nil
}
