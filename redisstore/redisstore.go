// Package redisstore provides a hishel.Storage backend over Redis, via
// github.com/redis/go-redis/v9.
package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hishelgo/hishel"
	"github.com/hishelgo/hishel/herrors"
	"github.com/hishelgo/hishel/kvstore"
)

type blob struct {
	client *redis.Client
}

func (b *blob) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := b.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (b *blob) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return b.client.Set(ctx, key, val, ttl).Err()
}

func (b *blob) Delete(ctx context.Context, key string) error {
	return b.client.Del(ctx, key).Err()
}

// Store is a hishel.Storage backed by Redis.
type Store struct {
	*kvstore.Store
	client *redis.Client
}

// Config configures a Store.
type Config struct {
	// Addr is the Redis server address, e.g. "localhost:6379".
	Addr string
	// Password, DB select the Redis connection; both may be left zero.
	Password string
	DB       int
	// DefaultTTL is passed through to kvstore.Store.
	DefaultTTL time.Duration
}

// New connects to Redis and returns a Store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: connecting to redis: %v", herrors.ErrStorage, err)
	}
	return &Store{
		Store:  kvstore.New(&blob{client: client}, cfg.DefaultTTL),
		client: client,
	}, nil
}

// Close closes the Redis client.
func (s *Store) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("%w: %v", herrors.ErrStorage, err)
	}
	return nil
}

var _ hishel.Storage = (*Store)(nil)
