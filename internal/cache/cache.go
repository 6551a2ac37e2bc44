// Package cache provides the content-addressed description cache that spares
// repeated captioning of unchanged files. Keys are content hashes, so a
// renamed file reuses its description and an edited file misses the cache.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

type DescriptionCache interface {
	// KeyFor hashes the full file bytes into a cache key.
	KeyFor(path string) (string, error)
	// KeyForBytes hashes in-memory content, e.g. a rasterized PDF page.
	KeyForBytes(data []byte) string
	Get(ctx context.Context, key string) (string, bool, error)
	// Put writes unconditionally, last write wins. Records are never
	// invalidated here; disk growth is an operator concern.
	Put(ctx context.Context, key string, description string) error
}

type diskCache struct {
	dir string
}

// NewDiskCache creates the cache root if needed. A non-writable root is an
// infrastructure failure for the whole modality, not a per-file one.
func NewDiskCache(dir string) (DescriptionCache, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &diskCache{dir: dir}, nil
}

func (c *diskCache) KeyFor(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (c *diskCache) KeyForBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func (c *diskCache) Get(ctx context.Context, key string) (string, bool, error) {
	_ = ctx
	data, err := os.ReadFile(c.recordPath(key))
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

func (c *diskCache) Put(ctx context.Context, key string, description string) error {
	_ = ctx
	return os.WriteFile(c.recordPath(key), []byte(description), 0o644)
}

func (c *diskCache) recordPath(key string) string {
	return filepath.Join(c.dir, key+".txt")
}
