package hishel

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hishelgo/hishel/herrors"
)

// SendRequestFunc performs the actual network exchange for req. CacheProxy
// never constructs its own transport; callers supply one, typically
// http.DefaultTransport.RoundTrip adapted to these types (see package
// hishelhttp).
type SendRequestFunc func(ctx context.Context, req Request) (Response, error)

// CacheProxy drives the pure decisions in state.go against a Storage
// backend and an origin, mirroring the AsyncCacheProxy request dispatch
// loop: look up stored pairs, decide, act, and recurse on the next
// decision until a response is ready to hand back to the caller.
type CacheProxy struct {
	send    SendRequestFunc
	storage Storage
	opts    CacheOptions
}

// NewCacheProxy builds a CacheProxy that sends cache-missed and
// revalidation requests through send and stores results in storage.
func NewCacheProxy(send SendRequestFunc, storage Storage, opts ...CacheOption) *CacheProxy {
	return &CacheProxy{
		send:    send,
		storage: storage,
		opts:    NewCacheOptions(opts...),
	}
}

// Handle resolves req, consulting storage and the origin as needed, and
// returns the response the caller should see.
func (p *CacheProxy) Handle(ctx context.Context, req Request) (Response, error) {
	key := p.opts.KeyGen(req)

	var pairs []CompletePair
	if !p.opts.IgnoreSpecification && !req.Metadata.SpecIgnore {
		var err error
		pairs, err = p.storage.GetPairs(ctx, key)
		if err != nil {
			GetLogger().WarnContext(ctx, "hishel: lookup failed, treating as miss", "cache_key", key, "error", err)
			pairs = nil
		}
	}

	state := DecideForRequest(req, p.opts, pairs, time.Now())
	return p.drive(ctx, key, state)
}

func (p *CacheProxy) drive(ctx context.Context, key string, state State) (Response, error) {
	GetLogger().DebugContext(ctx, "hishel: state transition", "state", fmt.Sprintf("%T", state), "cache_key", key)
	switch s := state.(type) {

	case CacheMiss:
		p.opts.Metrics.RecordDecision("cache_miss")
		resp, err := p.fetch(ctx, s.Request)
		if err != nil {
			return Response{}, err
		}
		return p.drive(ctx, key, DecideAfterFetch(s.Request, resp, p.opts))

	case FromCache:
		p.opts.Metrics.RecordDecision("from_cache")
		if s.Background != nil {
			p.opts.Metrics.RecordStaleServed("stale_while_revalidate")
			go p.revalidateInBackground(key, *s.Background, s.Pair)
		}
		pair := s.Pair
		if p.opts.RefreshTTLOnAccess || s.Request.Metadata.RefreshTTLOnAccess {
			refreshed, err := p.storage.UpdatePair(ctx, pair.ID, func(cp CompletePair) (CompletePair, error) {
				cp.Meta.CreatedAt = time.Now()
				return cp, nil
			})
			if err != nil {
				GetLogger().WarnContext(ctx, "hishel: refresh-ttl-on-access failed", "cache_key", key, "pair_id", pair.ID, "error", err)
			} else {
				pair = refreshed
			}
		}
		resp := pair.Response
		resp.Metadata.FromCache = true
		return resp, nil

	case NeedRevalidation:
		p.opts.Metrics.RecordDecision("need_revalidation")
		resp, err := p.fetch(ctx, s.Request)
		if err != nil {
			if AllowsStaleIfError(s.Pair.Response, s.Request, p.opts.Shared, time.Now()) {
				GetLogger().InfoContext(ctx, "hishel: serving stale on transport error", "cache_key", key, "error", err)
				p.opts.Metrics.RecordStaleServed("stale_if_error")
				stale := s.Pair.Response
				stale.Metadata.FromCache = true
				return stale, nil
			}
			return Response{}, err
		}
		return p.drive(ctx, key, DecideAfterRevalidation(s.Request, s.Pair, resp, p.opts))

	case NeedToBeUpdated:
		p.opts.Metrics.RecordDecision("need_to_be_updated")
		merged := MergeValidationHeaders(s.Pair.Response, s.NotModified)
		updated, err := p.storage.UpdatePair(ctx, s.Pair.ID, func(cp CompletePair) (CompletePair, error) {
			cp.Response = merged
			return cp, nil
		})
		if err != nil {
			return Response{}, fmt.Errorf("%w: %v", herrors.ErrStorage, err)
		}
		resp := updated.Response
		resp.Metadata.FromCache = true
		resp.Metadata.Revalidated = true
		return resp, nil

	case StoreAndUse:
		p.opts.Metrics.RecordDecision("store_and_use")
		resp := p.store(ctx, key, s.Request, s.Response)
		if p.opts.IgnoreSpecification || s.Request.Metadata.SpecIgnore {
			resp.Metadata.SpecIgnored = true
		}
		if InvalidatesCache(s.Request, s.Response) {
			p.invalidate(ctx, s.Request, s.Response)
		}
		return resp, nil

	case CouldNotBeStored:
		p.opts.Metrics.RecordDecision("could_not_be_stored")
		if InvalidatesCache(s.Request, s.Response) {
			p.invalidate(ctx, s.Request, s.Response)
		}
		return s.Response, nil
	}

	return Response{}, fmt.Errorf("hishel: unreachable state %T", state)
}

func (p *CacheProxy) fetch(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	resp, err := p.send(ctx, req)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", herrors.ErrTransport, err)
	}
	resp.Metadata.RequestTime = start
	resp.Metadata.ResponseTime = time.Now()
	return resp, nil
}

// store durably writes req/resp as a pair and returns the response that
// should be served to the caller. A storage failure is logged and the
// origin response is returned unstored rather than failing the request.
func (p *CacheProxy) store(ctx context.Context, key string, req Request, resp Response) Response {
	if req.Metadata.TTL == 0 {
		req.Metadata.TTL = p.opts.DefaultTTL
	}
	incomplete, err := p.storage.CreatePair(ctx, key, req)
	if err != nil {
		GetLogger().WarnContext(ctx, "hishel: failed to reserve pair, serving uncached", "cache_key", key, "error", err)
		return resp
	}
	complete, err := p.storage.AddResponse(ctx, incomplete.ID, resp)
	if err != nil {
		GetLogger().WarnContext(ctx, "hishel: failed to store response, serving uncached", "cache_key", key, "error", err)
		return resp
	}
	out := complete.Response
	out.Metadata.Stored = true
	return out
}

func (p *CacheProxy) revalidateInBackground(key string, req Request, pair CompletePair) {
	ctx := context.Background()
	resp, err := p.fetch(ctx, req)
	if err != nil {
		GetLogger().Warn("hishel: background revalidation failed", "cache_key", key, "error", err)
		return
	}
	_, err = p.drive(ctx, key, DecideAfterRevalidation(req, pair, resp, p.opts))
	if err != nil {
		GetLogger().Warn("hishel: background revalidation store failed", "cache_key", key, "error", err)
	}
}

// invalidate implements RFC 9111 section 4.4: remove every pair on record
// for the request URI and for any same-origin Location/Content-Location
// named by the response.
func (p *CacheProxy) invalidate(ctx context.Context, req Request, resp Response) {
	for _, target := range InvalidationTargets(req, resp) {
		key := p.opts.KeyGen(Request{Method: http.MethodGet, URL: target, Header: req.Header})
		pairs, err := p.storage.GetPairs(ctx, key)
		if err != nil {
			continue
		}
		for _, pair := range pairs {
			if err := p.storage.Remove(ctx, pair.ID); err != nil {
				GetLogger().WarnContext(ctx, "hishel: invalidation remove failed", "cache_key", key, "pair_id", pair.ID, "error", err)
			}
		}
	}
}
