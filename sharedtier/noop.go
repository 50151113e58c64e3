package sharedtier

import (
	"context"
	"time"
)

// NoopClient is a RemoteClient that stores nothing: every Get/MGet
// reports a miss and every write silently succeeds. It backs the shared
// tier when a facade runs in local-only mode, letting the rest of the
// chain and controller logic stay oblivious to whether a shared tier is
// actually present.
type NoopClient struct{}

func (NoopClient) Get(ctx context.Context, key string) ([]byte, error) { return nil, ErrNotFound }

func (NoopClient) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	return make([][]byte, len(keys)), nil
}

func (NoopClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}

func (NoopClient) Delete(ctx context.Context, key string) error { return nil }

func (NoopClient) FlushAll(ctx context.Context) error { return nil }
