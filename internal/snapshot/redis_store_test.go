package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attackgraph/internal/graph"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(RedisConfig{Addr: mr.Addr(), KeyPrefix: "test:snap"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()
	src := sampleStore()

	require.NoError(t, s.Save(ctx, "baseline", src))

	dst := graph.New()
	require.NoError(t, s.Load(ctx, "baseline", dst))
	assert.Equal(t, src.Nodes(), dst.Nodes())
	assert.Equal(t, src.Edges(), dst.Edges())
}

func TestRedisStoreListAndDelete(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	clock := time.Unix(1700000000, 0)
	s.now = func() time.Time { return clock }
	require.NoError(t, s.Save(ctx, "first", sampleStore()))
	clock = clock.Add(time.Hour)
	require.NoError(t, s.Save(ctx, "second", sampleStore()))

	entries, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "second", entries[0].Name)
	assert.Equal(t, clock.UTC(), entries[0].SavedAt)

	require.NoError(t, s.Delete(ctx, "second"))
	entries, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "first", entries[0].Name)
}

func TestRedisStoreMissingAndMalformed(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()
	live := sampleStore()
	before := live.Nodes()

	err := s.Load(ctx, "absent", live)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, mr.Set("test:snap:data:broken", `{"nodes":[{"data":{}}]}`))
	err = s.Load(ctx, "broken", live)
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Equal(t, before, live.Nodes())
}

func TestNewRedisStoreUnreachable(t *testing.T) {
	_, err := NewRedisStore(RedisConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
