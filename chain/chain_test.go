package chain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cachekit/gcache/key"
	"github.com/cachekit/gcache/localtier"
	"github.com/cachekit/gcache/serializer"
	"github.com/cachekit/gcache/sharedtier"
)

func init() {
	serializer.RegisterGobType("")
}

type fakeClient struct{ data map[string][]byte }

func newFakeClient() *fakeClient { return &fakeClient{data: make(map[string][]byte)} }

func (f *fakeClient) Get(ctx context.Context, k string) ([]byte, error) {
	v, ok := f.data[k]
	if !ok {
		return nil, sharedtier.ErrNotFound
	}
	return v, nil
}
func (f *fakeClient) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = f.data[k]
	}
	return out, nil
}
func (f *fakeClient) Set(ctx context.Context, k string, v []byte, ttl time.Duration) error {
	f.data[k] = v
	return nil
}
func (f *fakeClient) Delete(ctx context.Context, k string) error { delete(f.data, k); return nil }
func (f *fakeClient) FlushAll(ctx context.Context) error         { f.data = map[string][]byte{}; return nil }

func newTestChain(t *testing.T) *Chain {
	t.Helper()
	local := localtier.New(16)
	shared := sharedtier.New(newFakeClient(), "urn")
	return New("urn", local, shared)
}

func fullParticipation() Participation {
	return Participation{
		key.LayerLocal:  key.LayerConfig{TTL: time.Minute},
		key.LayerRemote: key.LayerConfig{TTL: time.Minute},
	}
}

func TestChain_Read_TotalMissReportsBothLayers(t *testing.T) {
	c := newTestChain(t)
	k := key.Key{KeyType: "user_id", ID: "1", UseCase: "profile"}

	res := c.Read(context.Background(), k, fullParticipation(), true)
	require.False(t, res.Hit)
	require.ElementsMatch(t, []key.Layer{key.LayerLocal, key.LayerRemote}, res.MissedLayers)
}

func TestChain_Store_ThenRead_HitsLocalFirst(t *testing.T) {
	c := newTestChain(t)
	k := key.Key{KeyType: "user_id", ID: "1", UseCase: "profile"}

	c.Store(context.Background(), k, "hello", fullParticipation(), true)

	res := c.Read(context.Background(), k, fullParticipation(), true)
	require.True(t, res.Hit)
	require.Equal(t, key.LayerLocal, res.Layer)
	require.Equal(t, "hello", res.Value)
}

func TestChain_Read_RemoteHitPopulatesLocal(t *testing.T) {
	c := newTestChain(t)
	k := key.Key{KeyType: "user_id", ID: "1", UseCase: "profile"}

	// Populate only the shared tier directly, bypassing Store so LOCAL
	// starts empty.
	c.shared.Set(context.Background(), k, "from-remote", time.Minute, true)

	res := c.Read(context.Background(), k, fullParticipation(), true)
	require.True(t, res.Hit)
	require.Equal(t, key.LayerRemote, res.Layer)
	require.Equal(t, []key.Layer{key.LayerLocal}, res.MissedLayers)

	// A second read must now be served from LOCAL, since the remote hit
	// should have populated it.
	local := c.Read(context.Background(), k, Participation{key.LayerLocal: key.LayerConfig{TTL: time.Minute}}, true)
	require.True(t, local.Hit)
	require.Equal(t, "from-remote", local.Value)
}

func TestChain_RemoveAndFlushAll(t *testing.T) {
	c := newTestChain(t)
	k := key.Key{KeyType: "user_id", ID: "1", UseCase: "profile"}
	c.Store(context.Background(), k, "v", fullParticipation(), true)

	c.Remove(context.Background(), k)
	res := c.Read(context.Background(), k, fullParticipation(), true)
	require.False(t, res.Hit)

	c.Store(context.Background(), k, "v2", fullParticipation(), true)
	c.FlushAll(context.Background())
	res = c.Read(context.Background(), k, fullParticipation(), true)
	require.False(t, res.Hit)
}
