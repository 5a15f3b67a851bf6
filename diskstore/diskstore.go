// Package diskstore provides a hishel.Storage backend over
// github.com/peterbourgon/diskv, a local key/value store that shards
// values into files under a base directory. diskv has no native TTL, so
// expiry beyond hishel's own soft-delete/Cleanup cycle is not enforced by
// the backend.
package diskstore

import (
	"context"
	"time"

	"github.com/peterbourgon/diskv"

	"github.com/hishelgo/hishel"
	"github.com/hishelgo/hishel/kvstore"
)

type blob struct {
	d *diskv.Diskv
}

func (b *blob) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := b.d.Read(key)
	if err != nil {
		return nil, false, nil
	}
	return val, true, nil
}

func (b *blob) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return b.d.Write(key, val)
}

func (b *blob) Delete(ctx context.Context, key string) error {
	if err := b.d.Erase(key); err != nil && err != diskv.ErrNotFound {
		return err
	}
	return nil
}

// Store is a hishel.Storage backed by a diskv directory tree.
type Store struct {
	*kvstore.Store
	d *diskv.Diskv
}

// New creates a Store rooted at baseDir.
func New(baseDir string) *Store {
	d := diskv.New(diskv.Options{
		BasePath:     baseDir,
		Transform:    func(s string) []string { return []string{} },
		CacheSizeMax: 0,
	})
	return &Store{
		Store: kvstore.New(&blob{d: d}, 0),
		d:     d,
	}
}

func (s *Store) Close() error { return nil }

var _ hishel.Storage = (*Store)(nil)
