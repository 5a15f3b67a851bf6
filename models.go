package hishel

import (
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// RequestMetadata carries per-request caching directives that originate from
// the caller rather than from HTTP headers, plus bookkeeping set by the
// proxy once a decision has been made.
type RequestMetadata struct {
	// TTL overrides the backend's default retention for the pair created
	// from this request. Zero means "use the backend default".
	TTL time.Duration
	// RefreshTTLOnAccess extends a pair's expiry every time it is read,
	// instead of counting strictly from creation.
	RefreshTTLOnAccess bool
	// SpecIgnore, when true, routes the request through the
	// specification-ignoring path: the proxy always re-fetches and stores
	// the result, without evaluating freshness or validators.
	SpecIgnore bool
}

// ResponseMetadata records how a response was obtained, for callers that
// want to observe cache behavior (logging, metrics, debugging headers), and
// the request/response timestamps RFC 9111 section 4.2.3's Age computation
// is defined in terms of.
type ResponseMetadata struct {
	// FromCache is true when the body was served out of storage: as a
	// fresh hit, after a 304 revalidation, or as a stale fallback when the
	// revalidation request failed.
	FromCache bool
	// Revalidated is true when FromCache is true and a conditional request
	// to the origin returned 304, refreshing this response's freshness
	// lifetime rather than replacing its body.
	Revalidated bool
	// SpecIgnored is true when the pair was produced via the
	// specification-ignoring path.
	SpecIgnored bool
	// Stored is true when the proxy wrote this response to the storage
	// backend.
	Stored bool

	// RequestTime is when the request that produced this response was
	// issued to the origin.
	RequestTime time.Time
	// ResponseTime is when the response was received from the origin.
	ResponseTime time.Time
}

// Request is the cache-relevant subset of an HTTP request: enough to derive
// a cache key, evaluate Vary, and replay the request for validation or a
// cache miss. Body is optional; a nil Body means the request carries no
// entity.
type Request struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   io.ReadCloser

	Metadata RequestMetadata
}

// Response is the cache-relevant subset of an HTTP response produced either
// by the origin or reconstructed from storage.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser

	Metadata ResponseMetadata
}

// PairMeta tracks the lifecycle of a stored pair independent of its
// request/response content.
type PairMeta struct {
	CreatedAt time.Time
	// DeletedAt is set by a storage backend's soft-delete step. A pair
	// with a non-nil DeletedAt is invisible to GetPairs but still present
	// on disk until the backend's cleanup routine hard-deletes it.
	DeletedAt *time.Time
}

// Pair is the identity and request half of a cache entry, shared by both
// its incomplete and complete forms.
type Pair struct {
	ID      uuid.UUID
	Request Request
	Meta    PairMeta
}

// IncompletePair is a pair that has been reserved for a request in flight:
// the request side is durable, but no response has been attached yet.
// AddResponse is the only valid transition out of this state, producing a
// CompletePair; the transition is one-way; unused fields carry backend
// bookkeeping (e.g. the stream names of request body chunks already
// written).
type IncompletePair struct {
	Pair
	Extra map[string]string
}

// CompletePair is a pair with both request and response durable and
// queryable by cache key. Once a pair is complete it can only be replaced
// wholesale via UpdatePair (revalidation) or removed.
type CompletePair struct {
	Pair
	Response Response
	CacheKey string
	Extra    map[string]string
}

// NewCompletePair attaches a response to a reserved incomplete pair,
// producing the durable form that is returned on subsequent lookups.
func NewCompletePair(incomplete IncompletePair, resp Response, cacheKey string) CompletePair {
	return CompletePair{
		Pair:     incomplete.Pair,
		Response: resp,
		CacheKey: cacheKey,
		Extra:    incomplete.Extra,
	}
}
