package hishel

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// HardDeleteGrace is the minimum time a soft-deleted pair is kept before a
// backend's Cleanup may hard-delete it, giving in-flight readers that
// fetched a CompletePair before the delete a window to finish streaming its
// body.
const HardDeleteGrace = time.Hour

// Storage is the contract every cache backend implements. A request/response
// exchange is stored as a pair: CreatePair reserves the request half,
// AddResponse durably attaches the response, and the pair becomes visible to
// GetPairs under its cache key. UpdatePair replaces a complete pair in place
// (used for revalidation: refreshing stored freshness metadata without
// re-downloading the body) and Remove soft-deletes it (used for
// invalidation). Cleanup reaps pairs that were soft-deleted past the grace
// period or left incomplete past a backend-defined timeout.
//
// Implementations must be safe for concurrent use. Two concurrent
// AddResponse calls against the same pair id must let exactly one succeed;
// the loser returns herrors.ErrAlreadyComplete.
type Storage interface {
	// CreatePair reserves storage for req under cacheKey and returns its
	// id. The request body, if any, is drained and stored durably before
	// CreatePair returns.
	CreatePair(ctx context.Context, cacheKey string, req Request) (IncompletePair, error)

	// AddResponse attaches resp to the pair previously reserved by
	// CreatePair, completing it. The response body, if any, is drained
	// and stored durably before AddResponse returns.
	AddResponse(ctx context.Context, id uuid.UUID, resp Response) (CompletePair, error)

	// GetPairs returns every complete, non-deleted pair stored under
	// cacheKey, most recently created first. Corrupt pairs (see
	// herrors.ErrCorrupt) are silently excluded rather than returned as
	// errors.
	GetPairs(ctx context.Context, cacheKey string) ([]CompletePair, error)

	// UpdatePair calls fn with the current value of the pair identified
	// by id and persists whatever fn returns in its place. fn must return
	// a pair with the same id; herrors.ErrIDMismatch is returned
	// otherwise. Used to rewrite a pair's response headers after a
	// successful revalidation.
	UpdatePair(ctx context.Context, id uuid.UUID, fn func(CompletePair) (CompletePair, error)) (CompletePair, error)

	// Remove soft-deletes the pair identified by id. It is idempotent:
	// removing an already-deleted or absent pair is not an error.
	Remove(ctx context.Context, id uuid.UUID) error

	// Cleanup hard-deletes pairs that have been soft-deleted for longer
	// than HardDeleteGrace, and reaps incomplete pairs abandoned past a
	// backend-defined timeout. It is safe to call concurrently with
	// itself and with all other Storage methods.
	Cleanup(ctx context.Context) error

	// Close releases resources held by the backend (connections, file
	// handles). After Close, all other methods may return errors.
	Close() error
}

// IsSoftDeleted reports whether meta has been marked for removal by
// Storage.Remove.
func IsSoftDeleted(meta PairMeta) bool {
	return meta.DeletedAt != nil
}

// IsSafeToHardDelete reports whether a soft-deleted pair has sat past grace
// and may now be purged permanently.
func IsSafeToHardDelete(meta PairMeta, grace time.Duration) bool {
	if meta.DeletedAt == nil {
		return false
	}
	return time.Since(*meta.DeletedAt) >= grace
}

// MarkPairAsDeleted returns a copy of meta with DeletedAt set to now. It
// leaves meta untouched if it is already soft-deleted.
func MarkPairAsDeleted(meta PairMeta) PairMeta {
	if meta.DeletedAt != nil {
		return meta
	}
	now := time.Now()
	meta.DeletedAt = &now
	return meta
}
