// Package blobstore provides a hishel.Storage backend over any
// gocloud.dev/blob bucket (S3, GCS, Azure Blob, file, memory, ...),
// selected by the bucket URL passed to Open. Bucket-level TTL is not part
// of the blob.Bucket API, so expiry is enforced purely by hishel's own
// soft-delete and Cleanup.
package blobstore

import (
	"context"
	"fmt"
	"time"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"github.com/hishelgo/hishel"
	"github.com/hishelgo/hishel/herrors"
	"github.com/hishelgo/hishel/kvstore"
)

type blobAdapter struct {
	bucket *blob.Bucket
}

func (b *blobAdapter) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := b.bucket.ReadAll(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	return val, true, nil
}

func (b *blobAdapter) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return b.bucket.WriteAll(ctx, key, val, nil)
}

func (b *blobAdapter) Delete(ctx context.Context, key string) error {
	err := b.bucket.Delete(ctx, key)
	if err != nil && gcerrors.Code(err) == gcerrors.NotFound {
		return nil
	}
	return err
}

// Store is a hishel.Storage backed by a gocloud.dev/blob bucket.
type Store struct {
	*kvstore.Store
	bucket *blob.Bucket
}

// Open opens the bucket identified by urlstr (e.g. "s3://my-bucket",
// "gs://my-bucket", "file:///var/cache/hishel") and returns a Store.
func Open(ctx context.Context, urlstr string, defaultTTL time.Duration) (*Store, error) {
	bucket, err := blob.OpenBucket(ctx, urlstr)
	if err != nil {
		return nil, fmt.Errorf("%w: opening bucket %s: %v", herrors.ErrStorage, urlstr, err)
	}
	return &Store{
		Store:  kvstore.New(&blobAdapter{bucket: bucket}, defaultTTL),
		bucket: bucket,
	}, nil
}

func (s *Store) Close() error {
	if err := s.bucket.Close(); err != nil {
		return fmt.Errorf("%w: %v", herrors.ErrStorage, err)
	}
	return nil
}

var _ hishel.Storage = (*Store)(nil)
