package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "f.bin")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestKeyForDeterministic(t *testing.T) {
	c, err := NewDiskCache(t.TempDir())
	require.NoError(t, err)
	path := writeTempFile(t, "same content")

	k1, err := c.KeyFor(path)
	require.NoError(t, err)
	k2, err := c.KeyFor(path)
	require.NoError(t, err)
	require.Equal(t, k1, k2)
}

func TestKeyForChangesWithContent(t *testing.T) {
	c, err := NewDiskCache(t.TempDir())
	require.NoError(t, err)
	path := writeTempFile(t, "before")

	k1, err := c.KeyFor(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("after"), 0o644))
	k2, err := c.KeyFor(path)
	require.NoError(t, err)
	require.NotEqual(t, k1, k2)
}

func TestKeySurvivesRename(t *testing.T) {
	c, err := NewDiskCache(t.TempDir())
	require.NoError(t, err)
	path := writeTempFile(t, "stable bytes")

	k1, err := c.KeyFor(path)
	require.NoError(t, err)
	moved := filepath.Join(filepath.Dir(path), "renamed.bin")
	require.NoError(t, os.Rename(path, moved))
	k2, err := c.KeyFor(moved)
	require.NoError(t, err)
	require.Equal(t, k1, k2)
}

func TestPutGetRoundTrip(t *testing.T) {
	c, err := NewDiskCache(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	path := writeTempFile(t, "image bytes")

	key, err := c.KeyFor(path)
	require.NoError(t, err)

	_, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Put(ctx, key, "a red bicycle"))
	desc, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a red bicycle", desc)
}

func TestPutLastWriteWins(t *testing.T) {
	c, err := NewDiskCache(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	key := c.KeyForBytes([]byte("content"))
	require.NoError(t, c.Put(ctx, key, "first"))
	require.NoError(t, c.Put(ctx, key, "second"))
	desc, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "second", desc)
}

func TestKeyForMissingFile(t *testing.T) {
	c, err := NewDiskCache(t.TempDir())
	require.NoError(t, err)
	_, err = c.KeyFor(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
}

func TestLRUServesFromMemory(t *testing.T) {
	dir := t.TempDir()
	disk, err := NewDiskCache(dir)
	require.NoError(t, err)
	c := WrapLRU(disk, 16, time.Minute)
	ctx := context.Background()

	key := c.KeyForBytes([]byte("payload"))
	require.NoError(t, c.Put(ctx, key, "cached description"))

	// Remove the disk record; the LRU tier should still answer.
	require.NoError(t, os.Remove(filepath.Join(dir, key+".txt")))
	desc, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "cached description", desc)
}

func TestWrapLRUDisabled(t *testing.T) {
	disk, err := NewDiskCache(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, disk, WrapLRU(disk, 0, time.Minute))
	require.Equal(t, disk, WrapLRU(disk, 16, 0))
}
