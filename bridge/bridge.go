// Package bridge implements the sync call path as a bounded worker pool:
// a fixed number of goroutines each execute one submitted call at a time,
// giving a caller outside of an existing scope-carrying goroutine a
// dedicated, isolated execution slot instead of spawning unbounded
// goroutines per call.
package bridge

import (
	"context"
	"errors"
	"sync"

	"github.com/cachekit/gcache/scope"
	"github.com/cachekit/gcache/sharedtier"
)

// DefaultWorkers is the pool size used when NewPool is given count <= 0.
const DefaultWorkers = 16

// ErrReentrant is returned when a call submitted to the bridge itself
// tries to Submit again while running on the same worker goroutine. The
// worker pool has no spare goroutine to service the nested call, so
// allowing it through would deadlock the pool instead of merely
// executing synchronously.
var ErrReentrant = errors.New("bridge: reentrant sync call rejected")

// ErrClosed is returned by Submit after Shutdown has completed.
var ErrClosed = errors.New("bridge: pool is shut down")

// Func is a unit of work a caller routes through the bridge.
type Func func(ctx context.Context) (any, error)

type job struct {
	ctx  context.Context
	fn   Func
	resp chan result
}

type result struct {
	value any
	err   error
}

type clientKey struct{}

// ClientFromContext returns the RemoteClient built for the bridge
// worker ctx is currently executing on. It only reports ok when the
// Pool was constructed with WithClientFactory and the factory call
// succeeded for that worker.
func ClientFromContext(ctx context.Context) (sharedtier.RemoteClient, bool) {
	c, ok := ctx.Value(clientKey{}).(sharedtier.RemoteClient)
	return c, ok
}

// Pool is a fixed-size worker pool implementing the sync call path. Its
// workers are not started until the first Submit call.
type Pool struct {
	count   int
	factory sharedtier.ClientFactory

	queue chan job
	done  chan struct{}
	wg    sync.WaitGroup

	startOnce sync.Once
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// Option configures a Pool at construction.
type Option func(*Pool)

// WithClientFactory gives every worker its own shared-tier client,
// constructed once per worker at startup rather than shared across
// goroutines. A clustered client's connection pool is not safe to share
// this way, so a deployment routing sync calls through the bridge
// supplies a factory instead of a single pre-built client. Submitted
// work reads the worker's client back via ClientFromContext. A factory
// call that errors leaves that worker without a dedicated client.
func WithClientFactory(f sharedtier.ClientFactory) Option {
	return func(p *Pool) { p.factory = f }
}

// NewPool prepares a count-worker pool; count <= 0 falls back to
// DefaultWorkers. Workers are not spun up until the first Submit call.
func NewPool(count int, opts ...Option) *Pool {
	if count <= 0 {
		count = DefaultWorkers
	}
	p := &Pool{
		count: count,
		queue: make(chan job),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ensureStarted spins up the worker goroutines on the first call and is
// a no-op on every subsequent one, so a Pool that never receives a
// Submit never starts a single goroutine.
func (p *Pool) ensureStarted() {
	p.startOnce.Do(func() {
		for i := 0; i < p.count; i++ {
			p.wg.Add(1)
			go p.run(i)
		}
	})
}

func (p *Pool) run(workerID int) {
	defer p.wg.Done()

	var client sharedtier.RemoteClient
	if p.factory != nil {
		if c, err := p.factory(); err == nil {
			client = c
		}
	}

	for {
		select {
		case <-p.done:
			return
		case j := <-p.queue:
			ctx := scope.WithBridgeWorker(j.ctx, workerID)
			if client != nil {
				ctx = context.WithValue(ctx, clientKey{}, client)
			}
			v, err := j.fn(ctx)
			j.resp <- result{value: v, err: err}
		}
	}
}

// Submit blocks the caller until a worker executes fn and returns its
// result. If ctx is already running on a bridge worker goroutine, Submit
// fails fast with ErrReentrant instead of queuing a job no free worker
// can service. The first Submit call on a Pool starts its workers.
func (p *Pool) Submit(ctx context.Context, fn Func) (any, error) {
	if _, onWorker := scope.BridgeWorker(ctx); onWorker {
		return nil, ErrReentrant
	}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, ErrClosed
	}
	p.mu.RUnlock()

	p.ensureStarted()

	j := job{ctx: ctx, fn: fn, resp: make(chan result, 1)}

	select {
	case p.queue <- j:
	case <-p.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-j.resp:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown stops accepting new submissions and waits for in-flight jobs
// to finish. A Pool that never received a Submit shuts down immediately,
// since it never started any workers.
func (p *Pool) Shutdown() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		close(p.done)
	})
	p.wg.Wait()
}
