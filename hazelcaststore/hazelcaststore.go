// Package hazelcaststore provides a hishel.Storage backend over a
// Hazelcast distributed map, via github.com/hazelcast/hazelcast-go-client.
package hazelcaststore

import (
	"context"
	"fmt"
	"time"

	"github.com/hazelcast/hazelcast-go-client"

	"github.com/hishelgo/hishel"
	"github.com/hishelgo/hishel/herrors"
	"github.com/hishelgo/hishel/kvstore"
)

type blob struct {
	m *hazelcast.Map
}

func (b *blob) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := b.m.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if val == nil {
		return nil, false, nil
	}
	raw, ok := val.([]byte)
	if !ok {
		return nil, false, fmt.Errorf("hazelcaststore: unexpected value type %T", val)
	}
	return raw, true, nil
}

func (b *blob) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if ttl > 0 {
		return b.m.SetWithTTL(ctx, key, val, ttl)
	}
	return b.m.Set(ctx, key, val)
}

func (b *blob) Delete(ctx context.Context, key string) error {
	_, err := b.m.Remove(ctx, key)
	return err
}

// Store is a hishel.Storage backed by a Hazelcast distributed map.
type Store struct {
	*kvstore.Store
	client *hazelcast.Client
}

// New connects to a Hazelcast cluster and returns a Store backed by
// mapName.
func New(ctx context.Context, config hazelcast.Config, mapName string, defaultTTL time.Duration) (*Store, error) {
	client, err := hazelcast.StartNewClientWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to hazelcast: %v", herrors.ErrStorage, err)
	}
	m, err := client.GetMap(ctx, mapName)
	if err != nil {
		client.Shutdown(ctx)
		return nil, fmt.Errorf("%w: opening map %s: %v", herrors.ErrStorage, mapName, err)
	}
	return &Store{
		Store:  kvstore.New(&blob{m: m}, defaultTTL),
		client: client,
	}, nil
}

func (s *Store) Close() error {
	return s.client.Shutdown(context.Background())
}

var _ hishel.Storage = (*Store)(nil)
