package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
)

// WrapLRU layers an in-memory tier over a description cache so hot records
// skip disk entirely. Keys are content hashes, shared with the next tier.
func WrapLRU(next DescriptionCache, size int, ttl time.Duration) DescriptionCache {
	if next == nil || size <= 0 || ttl <= 0 {
		return next
	}
	return &lruCache{
		next:  next,
		cache: expirable.NewLRU[string, string](size, nil, ttl),
	}
}

type lruCache struct {
	next  DescriptionCache
	cache *expirable.LRU[string, string]
}

func (l *lruCache) KeyFor(path string) (string, error) {
	return l.next.KeyFor(path)
}

func (l *lruCache) KeyForBytes(data []byte) string {
	return l.next.KeyForBytes(data)
}

func (l *lruCache) Get(ctx context.Context, key string) (string, bool, error) {
	if cached, ok := l.cache.Get(key); ok {
		logutil.GetLogger(ctx).Debug("description cache hit (lru)")
		return cached, true, nil
	}
	desc, ok, err := l.next.Get(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}
	l.cache.Add(key, desc)
	return desc, true, nil
}

func (l *lruCache) Put(ctx context.Context, key string, description string) error {
	if err := l.next.Put(ctx, key, description); err != nil {
		return err
	}
	l.cache.Add(key, description)
	return nil
}
