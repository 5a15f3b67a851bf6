package hishel

import "time"

// State is the result of a pure caching decision. Exactly one of the
// concrete types below is returned by each Decide* function; none of them
// perform I/O. CacheProxy is the driver that acts on a State by talking to
// the origin and the storage backend, then feeds the result back through
// the next Decide* call.
type State interface {
	isState()
}

// IdleClient is the entry state: a request has arrived and no decision has
// been made yet. DecideForRequest consumes it.
type IdleClient struct {
	Request Request
}

// CacheMiss means no usable stored response exists; the driver must send
// Request to the origin and feed the result to DecideAfterFetch.
type CacheMiss struct {
	Request Request
}

// FromCache means Pair's response is fresh enough to serve as-is, with no
// origin contact. Background is non-nil when the response was stale but
// within its stale-while-revalidate window: the driver serves Pair
// immediately and separately issues Background to the origin, feeding its
// result to DecideAfterRevalidation without blocking the caller. Request is the
// incoming request that reached this decision, carried along solely so the
// driver can read its RequestMetadata.RefreshTTLOnAccess override.
type FromCache struct {
	Pair       CompletePair
	Background *Request
	Request    Request
}

// NeedRevalidation means Pair is stale and cannot be served as-is, or the
// request forced revalidation via no-cache and Pair carries a validator; the
// driver must send Request (built by BuildConditionalRequest, so it carries
// no conditional headers when Pair has no validator) to the origin and feed
// the result to DecideAfterRevalidation.
type NeedRevalidation struct {
	Request Request
	Pair    CompletePair
}

// NeedToBeUpdated means the origin returned 304 Not Modified; the driver
// must merge NotModified into Pair's stored response via UpdatePair and
// serve the merged response.
type NeedToBeUpdated struct {
	Pair        CompletePair
	NotModified Response
}

// StoreAndUse means Response is storable and must be written via
// CreatePair/AddResponse before being served to the caller.
type StoreAndUse struct {
	Request  Request
	Response Response
}

// CouldNotBeStored means Response must be served to the caller as-is,
// without ever touching storage.
type CouldNotBeStored struct {
	Request  Request
	Response Response
}

// InvalidatePairs names the removal of Targets' cache entries after an
// unsafe method succeeded. No Decide* function returns it: CacheProxy
// handles a StoreAndUse or CouldNotBeStored decision whose request
// InvalidatesCache reports by removing the pairs under InvalidationTargets
// itself.
type InvalidatePairs struct {
	Targets []string // cache keys to invalidate
}

func (IdleClient) isState()       {}
func (CacheMiss) isState()        {}
func (FromCache) isState()        {}
func (NeedRevalidation) isState() {}
func (NeedToBeUpdated) isState()  {}
func (StoreAndUse) isState()      {}
func (CouldNotBeStored) isState() {}
func (InvalidatePairs) isState()  {}

// DecideForRequest is the first transition out of IdleClient: given the
// pairs already stored under the request's cache key, it decides whether
// the request can be answered from cache, needs revalidation, or must be
// sent to the origin outright.
func DecideForRequest(req Request, opts CacheOptions, pairs []CompletePair, now time.Time) State {
	if opts.IgnoreSpecification || req.Metadata.SpecIgnore {
		return CacheMiss{Request: req}
	}

	reqCC := parseCacheControl(req.Header)

	var best *CompletePair
	for i := range pairs {
		p := &pairs[i]
		if IsSoftDeleted(p.Meta) {
			continue
		}
		if !MatchesVary(*p, req) {
			continue
		}
		if best == nil || p.Response.Metadata.ResponseTime.After(best.Response.Metadata.ResponseTime) {
			best = p
		}
	}

	if best == nil {
		return CacheMiss{Request: req}
	}

	if reqCC.NoCache {
		if HasValidators(best.Response) {
			return NeedRevalidation{Request: BuildConditionalRequest(req, best.Response), Pair: *best}
		}
		return CacheMiss{Request: req}
	}

	age := CalculateAge(best.Response, now)
	lifetime := FreshnessLifetime(best.Response, opts.Shared)

	if reqCC.MaxAge != nil && age > time.Duration(*reqCC.MaxAge)*time.Second {
		return decideStale(req, *best, opts, now, reqCC)
	}
	if reqCC.MinFresh != nil && lifetime-age < time.Duration(*reqCC.MinFresh)*time.Second {
		return decideStale(req, *best, opts, now, reqCC)
	}

	if age < lifetime {
		return FromCache{Pair: *best, Request: req}
	}
	return decideStale(req, *best, opts, now, reqCC)
}

func decideStale(req Request, pair CompletePair, opts CacheOptions, now time.Time, reqCC cacheControl) State {
	if reqCC.MaxStale != nil {
		age := CalculateAge(pair.Response, now)
		lifetime := FreshnessLifetime(pair.Response, opts.Shared)
		if *reqCC.MaxStale < 0 || age < lifetime+time.Duration(*reqCC.MaxStale)*time.Second {
			if !MustRevalidateOnStale(pair.Response, opts.Shared) {
				return FromCache{Pair: pair, Request: req}
			}
		}
	}

	if AllowsStaleWhileRevalidate(pair.Response, opts.Shared, now) && !MustRevalidateOnStale(pair.Response, opts.Shared) {
		cond := BuildConditionalRequest(req, pair.Response)
		return FromCache{Pair: pair, Background: &cond, Request: req}
	}

	if reqCC.OnlyIfCached {
		return CouldNotBeStored{Request: req, Response: Response{StatusCode: 504}}
	}

	return NeedRevalidation{Request: BuildConditionalRequest(req, pair.Response), Pair: pair}
}

// DecideAfterFetch is the transition taken once the origin has answered a
// CacheMiss, or answered a revalidation with something other than 304: it
// decides whether the fresh response must be stored or simply passed
// through. On the specification-ignoring path the response is always
// stored. Invalidation of other cache entries is done by CacheProxy, not
// decided here.
func DecideAfterFetch(req Request, resp Response, opts CacheOptions) State {
	if opts.IgnoreSpecification || req.Metadata.SpecIgnore {
		return StoreAndUse{Request: req, Response: resp}
	}
	if IsStorable(req, resp, opts) {
		return StoreAndUse{Request: req, Response: resp}
	}
	return CouldNotBeStored{Request: req, Response: resp}
}

// DecideAfterRevalidation is the transition taken once the origin has
// answered a NeedRevalidation conditional request.
func DecideAfterRevalidation(req Request, pair CompletePair, resp Response, opts CacheOptions) State {
	if IsNotModified(resp) {
		return NeedToBeUpdated{Pair: pair, NotModified: resp}
	}
	return DecideAfterFetch(req, resp, opts)
}
