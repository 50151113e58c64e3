package sharedtier

import (
	"context"
	"errors"
	"sync"
	"time"
)

// fakeClient is a hand-rolled in-memory RemoteClient, mirroring the
// pack's own mock-over-mutex-protected-map convention rather than a
// mocking framework.
type fakeClient struct {
	mu   sync.Mutex
	data map[string][]byte

	failAll bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{data: make(map[string][]byte)}
}

func (f *fakeClient) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return nil, errors.New("fake: simulated transport failure")
	}
	v, ok := f.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (f *fakeClient) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return nil, errors.New("fake: simulated transport failure")
	}
	out := make([][]byte, len(keys))
	for i, k := range keys {
		if v, ok := f.data[k]; ok {
			out[i] = v
		}
	}
	return out, nil
}

func (f *fakeClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errors.New("fake: simulated transport failure")
	}
	f.data[key] = value
	return nil
}

func (f *fakeClient) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errors.New("fake: simulated transport failure")
	}
	delete(f.data, key)
	return nil
}

func (f *fakeClient) FlushAll(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errors.New("fake: simulated transport failure")
	}
	f.data = make(map[string][]byte)
	return nil
}
