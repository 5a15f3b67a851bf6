package hishel

import (
	"net/http"
	"time"
)

// CacheOptions configures a CacheProxy. The zero value is a private
// (non-shared) cache with specification compliance enabled and no
// specification-ignoring override, matching the safest RFC 9111 defaults.
type CacheOptions struct {
	// Shared marks this cache as a shared cache per RFC 9111 section 4.2.2:
	// s-maxage and the Private directive are honored, and responses to
	// requests carrying an Authorization header are not stored unless
	// explicitly allowed.
	Shared bool

	// IgnoreSpecification routes every request through the
	// specification-ignoring path (always fetch, always store, never
	// evaluate freshness), overriding per-request
	// RequestMetadata.SpecIgnore.
	IgnoreSpecification bool

	// DefaultTTL is applied to a stored pair when neither the response
	// nor the per-request metadata specifies a retention period. Zero
	// means the storage backend's own default applies.
	DefaultTTL time.Duration

	// RefreshTTLOnAccess extends a pair's expiry on every read instead of
	// counting strictly from creation. The effective flag for a given
	// access is this value ORed with the serving request's
	// RequestMetadata.RefreshTTLOnAccess, so either side can opt in.
	RefreshTTLOnAccess bool

	// SupportedMethods whitelists the request methods this cache will
	// store responses for. Empty means the RFC 9111 default of GET and
	// HEAD.
	SupportedMethods []string

	// KeyGen generates the cache key used to group pairs that answer the
	// same logical request. A nil KeyGen uses DefaultKeyGen.
	KeyGen KeyGen

	// Metrics receives the decisions CacheProxy reaches, if set. Package
	// metrics's Collector satisfies this interface structurally.
	Metrics DecisionRecorder
}

// DecisionRecorder observes the outcomes CacheProxy reaches, without
// CacheProxy depending on any particular metrics backend. A
// metrics.Collector satisfies this interface, since Go interface
// satisfaction only requires the methods actually used.
type DecisionRecorder interface {
	// RecordDecision records which State the proxy reached for a request:
	// "from_cache", "cache_miss", "need_revalidation", "need_to_be_updated",
	// "store_and_use", or "could_not_be_stored".
	RecordDecision(decision string)
	// RecordStaleServed records a stale response served to the caller,
	// with reason "stale_while_revalidate" or "stale_if_error".
	RecordStaleServed(reason string)
}

type noopDecisionRecorder struct{}

func (noopDecisionRecorder) RecordDecision(string)   {}
func (noopDecisionRecorder) RecordStaleServed(string) {}

// CacheOption configures a CacheOptions value.
type CacheOption func(*CacheOptions)

// NewCacheOptions builds a CacheOptions from the given options, starting
// from the private-cache defaults.
func NewCacheOptions(opts ...CacheOption) CacheOptions {
	o := CacheOptions{
		SupportedMethods: []string{http.MethodGet, http.MethodHead},
		KeyGen:           DefaultKeyGen,
		Metrics:          noopDecisionRecorder{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if len(o.SupportedMethods) == 0 {
		o.SupportedMethods = []string{http.MethodGet, http.MethodHead}
	}
	if o.KeyGen == nil {
		o.KeyGen = DefaultKeyGen
	}
	if o.Metrics == nil {
		o.Metrics = noopDecisionRecorder{}
	}
	return o
}

// WithMetrics makes the cache report decision and stale-serving outcomes
// to m (typically a metrics.Collector).
func WithMetrics(m DecisionRecorder) CacheOption {
	return func(o *CacheOptions) { o.Metrics = m }
}

// WithShared marks the cache as shared (see CacheOptions.Shared).
func WithShared(shared bool) CacheOption {
	return func(o *CacheOptions) { o.Shared = shared }
}

// WithIgnoreSpecification makes the cache always fetch and store,
// bypassing RFC 9111 freshness and validation entirely.
func WithIgnoreSpecification(ignore bool) CacheOption {
	return func(o *CacheOptions) { o.IgnoreSpecification = ignore }
}

// WithDefaultTTL sets the retention applied to pairs with no explicit TTL.
func WithDefaultTTL(ttl time.Duration) CacheOption {
	return func(o *CacheOptions) { o.DefaultTTL = ttl }
}

// WithRefreshTTLOnAccess enables sliding expiry for stored pairs.
func WithRefreshTTLOnAccess(refresh bool) CacheOption {
	return func(o *CacheOptions) { o.RefreshTTLOnAccess = refresh }
}

// WithSupportedMethods overrides the whitelist of methods this cache will
// store responses for. Passing no methods restores the GET/HEAD default.
func WithSupportedMethods(methods ...string) CacheOption {
	return func(o *CacheOptions) { o.SupportedMethods = methods }
}

// WithKeyGen overrides the cache key generation strategy.
func WithKeyGen(kg KeyGen) CacheOption {
	return func(o *CacheOptions) { o.KeyGen = kg }
}
