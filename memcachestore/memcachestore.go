// Package memcachestore provides a hishel.Storage backend over Memcached,
// via github.com/bradfitz/gomemcache.
package memcachestore

import (
	"context"
	"fmt"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/hishelgo/hishel"
	"github.com/hishelgo/hishel/herrors"
	"github.com/hishelgo/hishel/kvstore"
)

type blob struct {
	client *memcache.Client
}

func (b *blob) Get(ctx context.Context, key string) ([]byte, bool, error) {
	item, err := b.client.Get(key)
	if err == memcache.ErrCacheMiss {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return item.Value, true, nil
}

func (b *blob) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return b.client.Set(&memcache.Item{
		Key:        key,
		Value:      val,
		Expiration: int32(ttl.Seconds()),
	})
}

func (b *blob) Delete(ctx context.Context, key string) error {
	err := b.client.Delete(key)
	if err == memcache.ErrCacheMiss {
		return nil
	}
	return err
}

// Store is a hishel.Storage backed by Memcached.
type Store struct {
	*kvstore.Store
	client *memcache.Client
}

// New returns a Store connected to the given Memcached servers.
func New(servers []string, defaultTTL time.Duration) (*Store, error) {
	if len(servers) == 0 {
		return nil, fmt.Errorf("%w: memcachestore requires at least one server", herrors.ErrStorage)
	}
	client := memcache.New(servers...)
	return &Store{
		Store:  kvstore.New(&blob{client: client}, defaultTTL),
		client: client,
	}, nil
}

func (s *Store) Close() error { return nil }

var _ hishel.Storage = (*Store)(nil)
