package blobcache

import (
	"context"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteCache(t *testing.T) *SQLiteCache {
	t.Helper()
	cache, err := NewSQLiteCache(filepath.Join(t.TempDir(), "peasant.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestSQLiteCachePutGetDelete(t *testing.T) {
	cache := newTestSQLiteCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "queued/1", []byte(`{"id":1}`)))

	data, err := cache.Get(ctx, "queued/1")
	require.NoError(t, err)
	assert.Equal(t, `{"id":1}`, string(data))

	require.NoError(t, cache.Delete(ctx, "queued/1"))

	_, err = cache.Get(ctx, "queued/1")
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(cache.Delete(ctx, "queued/1")))
}

func TestSQLiteCachePutOverwrites(t *testing.T) {
	cache := newTestSQLiteCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "result/7", []byte("old")))
	require.NoError(t, cache.Put(ctx, "result/7", []byte("new")))

	data, err := cache.Get(ctx, "result/7")
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestSQLiteCacheListByPrefix(t *testing.T) {
	cache := newTestSQLiteCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "queued/1", []byte("a")))
	require.NoError(t, cache.Put(ctx, "queued/12", []byte("b")))
	require.NoError(t, cache.Put(ctx, "result/1", []byte("c")))

	keys, err := cache.List(ctx, "queued/")
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"queued/1", "queued/12"}, keys)
}

func TestSQLiteCacheSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peasant.db")
	ctx := context.Background()

	cache, err := NewSQLiteCache(path)
	require.NoError(t, err)
	require.NoError(t, cache.Put(ctx, "result/3", []byte("kept")))
	require.NoError(t, cache.Close())

	reopened, err := NewSQLiteCache(path)
	require.NoError(t, err)
	defer reopened.Close()

	data, err := reopened.Get(ctx, "result/3")
	require.NoError(t, err)
	assert.Equal(t, "kept", string(data))
}
