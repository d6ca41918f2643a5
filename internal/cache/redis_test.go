// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/eduscout/pkg/types"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(context.Background(), types.CacheConfig{
		RedisAddr: mr.Addr(),
		TTL:       time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	s, _ := newRedisStore(t)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "q", "brave")
	require.NoError(t, err)
	assert.False(t, ok)

	want := payload(2)
	require.NoError(t, s.Set(ctx, "q", "brave", want))

	got, ok, err := s.Get(ctx, "q", "brave")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)

	stats := s.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestRedisStoreTTLExpiry(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "q", "brave", payload(1)))

	// Advance past the TTL; miniredis expires keys on FastForward.
	mr.FastForward(2 * time.Hour)

	_, ok, err := s.Get(ctx, "q", "brave")
	require.NoError(t, err)
	assert.False(t, ok, "expired entry must be a miss")
}

func TestRedisStoreWriteOnce(t *testing.T) {
	s, _ := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "q", "brave", payload(1)))
	require.NoError(t, s.Set(ctx, "q", "brave", payload(5)))

	got, ok, err := s.Get(ctx, "q", "brave")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, got, 1, "SET NX must not overwrite a live entry")
}

func TestRedisStoreCorruptEntryIsMiss(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()

	mr.Set(keyPrefix+Key("q", "brave"), "not json")

	_, ok, err := s.Get(ctx, "q", "brave")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreLenAndPurge(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "q1", "brave", payload(1)))
	require.NoError(t, s.Set(ctx, "q2", "youtube", payload(1)))
	// A foreign key outside the namespace must survive Purge.
	mr.Set("other:key", "x")

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	removed, err := s.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	n, err = s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.True(t, mr.Exists("other:key"))
}

func TestNewRedisStoreBadAddr(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := NewRedisStore(ctx, types.CacheConfig{RedisAddr: "127.0.0.1:1"})
	assert.Error(t, err)
}
