package cache_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/book-expert/tts-proxy/internal/cache"
	"github.com/book-expert/tts-proxy/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_UploadDownload(t *testing.T) {
	t.Parallel()

	store := cache.NewMemoryStore(time.Hour, 0)
	ctx := context.Background()

	_, err := store.Download(ctx, "missing")
	require.ErrorIs(t, err, core.ErrObjectNotFound)

	require.NoError(t, store.Upload(ctx, "key", []byte("value")))

	data, err := store.Download(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), data)
}

func TestMemoryStore_Expiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := cache.NewMemoryStore(24*time.Hour, 0).WithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, store.Upload(ctx, "key", []byte("value")))

	now = now.Add(23 * time.Hour)

	_, err := store.Download(ctx, "key")
	require.NoError(t, err)

	now = now.Add(time.Hour)

	_, err = store.Download(ctx, "key")
	require.ErrorIs(t, err, core.ErrObjectNotFound)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_Eviction(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := cache.NewMemoryStore(time.Hour, 2).WithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, store.Upload(ctx, "first", []byte("1")))

	now = now.Add(time.Minute)
	require.NoError(t, store.Upload(ctx, "second", []byte("2")))

	now = now.Add(time.Minute)
	require.NoError(t, store.Upload(ctx, "third", []byte("3")))

	assert.Equal(t, 2, store.Len())

	_, err := store.Download(ctx, "first")
	require.ErrorIs(t, err, core.ErrObjectNotFound)

	_, err = store.Download(ctx, "third")
	require.NoError(t, err)

	// Overwriting an existing key never evicts.
	require.NoError(t, store.Upload(ctx, "third", []byte("3b")))
	assert.Equal(t, 2, store.Len())
}

func TestMemoryStore_UploadSweepsExpiredEntries(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := cache.NewMemoryStore(time.Hour, 0).WithClock(func() time.Time { return now })
	ctx := context.Background()

	for i := range 1000 {
		require.NoError(t, store.Upload(ctx, fmt.Sprintf("key-%d", i), []byte("value")))
	}

	assert.Equal(t, 1000, store.Len())

	now = now.Add(48 * time.Hour)
	require.NoError(t, store.Upload(ctx, "fresh", []byte("value")))

	assert.Equal(t, 1, store.Len())

	_, err := store.Download(ctx, "fresh")
	require.NoError(t, err)
}

func TestMemoryStore_SweepKeepsLiveEntries(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := cache.NewMemoryStore(time.Hour, 0).WithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, store.Upload(ctx, "old", []byte("1")))

	now = now.Add(30 * time.Minute)
	require.NoError(t, store.Upload(ctx, "young", []byte("2")))

	now = now.Add(45 * time.Minute)
	require.NoError(t, store.Upload(ctx, "newest", []byte("3")))

	assert.Equal(t, 2, store.Len())

	_, err := store.Download(ctx, "young")
	require.NoError(t, err)
}
