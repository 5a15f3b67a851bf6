// Package natsstore provides a hishel.Storage backend over a NATS
// JetStream key/value bucket, via github.com/nats-io/nats.go.
package natsstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/hishelgo/hishel"
	"github.com/hishelgo/hishel/herrors"
	"github.com/hishelgo/hishel/kvstore"
)

type blob struct {
	kv jetstream.KeyValue
}

func (b *blob) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := b.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return entry.Value(), true, nil
}

func (b *blob) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	_, err := b.kv.Put(ctx, key, val)
	return err
}

func (b *blob) Delete(ctx context.Context, key string) error {
	err := b.kv.Delete(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	return err
}

// Store is a hishel.Storage backed by a JetStream key/value bucket.
type Store struct {
	*kvstore.Store
	nc *nats.Conn
}

// Config configures a Store.
type Config struct {
	// URL is the NATS server URL, e.g. nats.DefaultURL.
	URL string
	// Bucket is the JetStream KV bucket name; it is created if absent.
	Bucket string
	// TTL is the bucket-level per-key expiry. Zero means no expiry.
	TTL time.Duration
}

// New connects to NATS, ensures the configured KV bucket exists, and
// returns a Store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to nats: %v", herrors.ErrStorage, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("%w: creating jetstream context: %v", herrors.ErrStorage, err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: cfg.Bucket,
		TTL:    cfg.TTL,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("%w: creating kv bucket: %v", herrors.ErrStorage, err)
	}

	return &Store{
		Store: kvstore.New(&blob{kv: kv}, cfg.TTL),
		nc:    nc,
	}, nil
}

func (s *Store) Close() error {
	s.nc.Close()
	return nil
}

var _ hishel.Storage = (*Store)(nil)
