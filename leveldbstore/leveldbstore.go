// Package leveldbstore provides a hishel.Storage backend over
// github.com/syndtr/goleveldb, an embedded LevelDB implementation. Like
// diskstore, LevelDB has no native TTL; expiry is enforced purely by
// hishel's soft-delete and Cleanup.
package leveldbstore

import (
	"context"
	"fmt"
	"time"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/hishelgo/hishel"
	"github.com/hishelgo/hishel/herrors"
	"github.com/hishelgo/hishel/kvstore"
)

type blob struct {
	db *leveldb.DB
}

func (b *blob) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := b.db.Get([]byte(key), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (b *blob) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return b.db.Put([]byte(key), val, nil)
}

func (b *blob) Delete(ctx context.Context, key string) error {
	return b.db.Delete([]byte(key), nil)
}

// Store is a hishel.Storage backed by an embedded LevelDB database.
type Store struct {
	*kvstore.Store
	db *leveldb.DB
}

// Open opens (or creates) the LevelDB database at path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: opening leveldb: %v", herrors.ErrStorage, err)
	}
	return &Store{
		Store: kvstore.New(&blob{db: db}, 0),
		db:    db,
	}, nil
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w: %v", herrors.ErrStorage, err)
	}
	return nil
}

var _ hishel.Storage = (*Store)(nil)
