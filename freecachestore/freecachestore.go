// Package freecachestore provides an in-process hishel.Storage backend
// over github.com/coocood/freecache, a zero-GC-pressure LRU byte cache.
// Unlike memstore, eviction is capacity-driven: once the configured size is
// full, freecache evicts least-recently-used entries itself.
package freecachestore

import (
	"context"
	"time"

	"github.com/coocood/freecache"

	"github.com/hishelgo/hishel"
	"github.com/hishelgo/hishel/kvstore"
)

type blob struct {
	cache *freecache.Cache
}

func (b *blob) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := b.cache.Get([]byte(key))
	if err == freecache.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (b *blob) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return b.cache.Set([]byte(key), val, int(ttl.Seconds()))
}

func (b *blob) Delete(ctx context.Context, key string) error {
	b.cache.Del([]byte(key))
	return nil
}

// Store is a hishel.Storage backed by an in-process freecache instance.
type Store struct {
	*kvstore.Store
	cache *freecache.Cache
}

// New creates a Store with the given cache capacity in bytes. defaultTTL of
// zero lets entries live until evicted for space.
func New(sizeBytes int, defaultTTL time.Duration) *Store {
	cache := freecache.NewCache(sizeBytes)
	return &Store{
		Store: kvstore.New(&blob{cache: cache}, defaultTTL),
		cache: cache,
	}
}

func (s *Store) Close() error { return nil }

var _ hishel.Storage = (*Store)(nil)
