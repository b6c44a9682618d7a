package cache

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/migadu/listsearch/consts"
)

// newTestCache is a test helper to create a cache instance in a temporary directory.
func newTestCache(t *testing.T, capacity int64, maxObjectSize int64) *Cache {
	t.Helper()
	c, err := New(t.TempDir(), capacity, maxObjectSize)
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, c.Close())
	})
	return c
}

func randomData(t *testing.T, size int) []byte {
	t.Helper()
	data := make([]byte, size)
	_, err := rand.Read(data)
	require.NoError(t, err)
	return data
}

func archiveURL(n int) string {
	return fmt.Sprintf("https://lists.example.org/pipermail/dev/2024-%02d.txt.gz", n)
}

func TestKeyForURL(t *testing.T) {
	k1 := KeyForURL(archiveURL(1))
	k2 := KeyForURL(archiveURL(2))
	assert.Len(t, k1, 64)
	assert.NotEqual(t, k1, k2)
	assert.Equal(t, k1, KeyForURL(archiveURL(1)))
}

func TestNewCache(t *testing.T) {
	t.Run("successful creation", func(t *testing.T) {
		c := newTestCache(t, 1024, 512)
		assert.NotNil(t, c.db)
		assert.DirExists(t, filepath.Join(c.basePath, DataDir))
		assert.FileExists(t, filepath.Join(c.basePath, IndexDB))
	})

	t.Run("empty base path", func(t *testing.T) {
		_, err := New("  ", 1024, 512)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "cache base path cannot be empty")
	})
}

func TestPutGetExistsDelete(t *testing.T) {
	c := newTestCache(t, 1024, 512)
	url := archiveURL(1)
	data := randomData(t, 100)

	_, err := c.Get(url)
	assert.ErrorIs(t, err, consts.ErrNotCached)
	assert.Equal(t, int64(1), c.cacheMisses)

	_, err = c.Stat(url)
	assert.ErrorIs(t, err, consts.ErrNotCached)

	require.NoError(t, c.Put(url, data))

	got, err := c.Get(url)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, int64(1), c.cacheHits)

	entry, err := c.Stat(url)
	require.NoError(t, err)
	assert.Equal(t, int64(100), entry.Size)
	assert.Equal(t, c.PathForURL(url), entry.Path)
	assert.WithinDuration(t, time.Now(), entry.ModTime, time.Minute)

	exists, err := c.Exists(url)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, c.Delete(url))
	exists, err = c.Exists(url)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoFileExists(t, c.PathForURL(url))

	assert.NoError(t, c.Delete(url), "deleting twice is fine")
}

func TestPut_Overwrites(t *testing.T) {
	c := newTestCache(t, 1024, 512)
	url := archiveURL(3)

	require.NoError(t, c.Put(url, []byte("old")))
	require.NoError(t, c.Put(url, []byte("newer")))

	got, err := c.Get(url)
	require.NoError(t, err)
	assert.Equal(t, "newer", string(got))

	entries, err := c.Entries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, url, entries[0].URL)
	assert.Equal(t, int64(5), entries[0].Size)
}

func TestDelete_RemovesEmptyParents(t *testing.T) {
	c := newTestCache(t, 1024, 512)
	url := archiveURL(4)

	require.NoError(t, c.Put(url, randomData(t, 10)))
	path := c.PathForURL(url)
	require.NoError(t, c.Delete(url))

	_, err := os.Stat(filepath.Dir(filepath.Dir(path)))
	assert.True(t, os.IsNotExist(err), "empty parent directories should be removed")
	assert.DirExists(t, filepath.Join(c.basePath, DataDir))
}

func TestPut_ObjectTooLarge(t *testing.T) {
	c := newTestCache(t, 1024, 100)

	err := c.Put(archiveURL(1), randomData(t, 101))
	assert.ErrorIs(t, err, consts.ErrObjectTooLarge)
	assert.Contains(t, err.Error(), "exceeds limit")
}

func TestConcurrentPut(t *testing.T) {
	c := newTestCache(t, 4096, 512)
	data := randomData(t, 100)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Put(archiveURL(5), data))
		}()
	}
	wg.Wait()

	got, err := c.Get(archiveURL(5))
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestPurgeIfNeeded(t *testing.T) {
	c := newTestCache(t, 100, 50)
	ctx := context.Background()

	require.NoError(t, c.Put(archiveURL(1), randomData(t, 50)))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, c.Put(archiveURL(2), randomData(t, 50)))

	require.NoError(t, c.PurgeIfNeeded(ctx))
	for _, n := range []int{1, 2} {
		exists, err := c.Exists(archiveURL(n))
		require.NoError(t, err)
		assert.True(t, exists, "nothing purged while within capacity")
	}

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, c.Put(archiveURL(3), randomData(t, 20)))
	require.NoError(t, c.PurgeIfNeeded(ctx))

	exists, _ := c.Exists(archiveURL(1))
	assert.False(t, exists, "oldest archive is purged")
	assert.NoFileExists(t, c.PathForURL(archiveURL(1)))
	exists, _ = c.Exists(archiveURL(2))
	assert.True(t, exists)
	exists, _ = c.Exists(archiveURL(3))
	assert.True(t, exists)
}

func TestRemoveStaleDBEntries(t *testing.T) {
	c := newTestCache(t, 1024, 512)
	ctx := context.Background()

	require.NoError(t, c.Put(archiveURL(1), randomData(t, 10)))
	require.NoError(t, c.Put(archiveURL(2), randomData(t, 10)))
	require.NoError(t, os.Remove(c.PathForURL(archiveURL(1))))

	require.NoError(t, c.RemoveStaleDBEntries(ctx))

	entries, err := c.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, archiveURL(2), entries[0].URL)
}

func TestPurgeAll(t *testing.T) {
	c := newTestCache(t, 1024, 512)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		require.NoError(t, c.Put(archiveURL(i), randomData(t, 10)))
	}
	stats, err := c.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.ObjectCount)
	assert.Equal(t, int64(30), stats.TotalSize)

	require.NoError(t, c.PurgeAll(ctx))

	stats, err = c.GetStats()
	require.NoError(t, err)
	assert.Zero(t, stats.ObjectCount)
	assert.DirExists(t, filepath.Join(c.basePath, DataDir))
	_, err = c.Get(archiveURL(1))
	assert.ErrorIs(t, err, consts.ErrNotCached)
}

func TestGetMetrics(t *testing.T) {
	c := newTestCache(t, 1024, 512)
	require.NoError(t, c.Put(archiveURL(1), []byte("x")))

	_, _ = c.Get(archiveURL(1))
	_, _ = c.Get(archiveURL(1))
	_, _ = c.Get(archiveURL(2))

	m := c.GetMetrics()
	assert.Equal(t, int64(2), m.Hits)
	assert.Equal(t, int64(1), m.Misses)
	assert.Equal(t, int64(3), m.TotalOps)
	assert.InDelta(t, 66.66, m.HitRate, 0.1)
}
