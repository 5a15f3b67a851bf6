package hishel

import (
	"net/http"
	"strings"
)

// cacheableByDefaultStatus lists response status codes RFC 9111 section 3
// (via the registry it references) permits caching for even without
// explicit freshness information, when the method is understood. 308 is
// deliberately absent: it is an understood status (see
// understoodStatusCodes) but is not itself heuristically cacheable.
var cacheableByDefaultStatus = map[int]bool{
	200: true, 203: true, 204: true, 206: true, 300: true,
	301: true, 404: true, 405: true, 410: true,
	414: true, 501: true,
}

// IsStorable implements the storage-eligibility algorithm of RFC 9111
// section 3: a cache MUST NOT store a response to req unless every one of
// these conditions holds.
func IsStorable(req Request, resp Response, opts CacheOptions) bool {
	if !methodSupported(req.Method, opts.SupportedMethods) {
		return false
	}
	if resp.StatusCode < 200 {
		return false
	}
	if !IsUnderstoodStatus(resp) {
		return false
	}

	reqCC := parseCacheControl(req.Header)
	if reqCC.NoStore {
		return false
	}

	respCC := parseCacheControl(resp.Header)
	if respCC.NoStore {
		return false
	}
	if respCC.MustUnderstand && !IsUnderstoodStatus(resp) {
		return false
	}
	if opts.Shared && respCC.Private {
		return false
	}
	if opts.Shared && req.Header.Get("Authorization") != "" {
		allowed := respCC.Public || respCC.MustRevalidate || respCC.SMaxAge != nil
		if !allowed {
			return false
		}
	}

	if respCC.Public || respCC.Private || respCC.MustRevalidate ||
		respCC.MaxAge != nil || respCC.SMaxAge != nil ||
		resp.Header.Get("Expires") != "" || cacheableByDefaultStatus[resp.StatusCode] {
		return true
	}
	return false
}

// methodSupported reports whether method is in the whitelist of methods
// this cache is configured to store responses for, defaulting to GET and
// HEAD when supported is empty (see CacheOptions.SupportedMethods).
func methodSupported(method string, supported []string) bool {
	if len(supported) == 0 {
		return method == http.MethodGet || method == http.MethodHead
	}
	for _, m := range supported {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

// RequiresUnderstoodStatus reports whether resp demands must-understand
// semantics (RFC 9111 section 3.1): if a cache does not recognize the
// status code it must treat the response as uncacheable regardless of
// other directives.
func RequiresUnderstoodStatus(resp Response) bool {
	cc := parseCacheControl(resp.Header)
	return cc.MustUnderstand
}

// understoodStatusCodes are the status codes this cache assigns caching
// semantics to. A response carrying must-understand with any other status
// is not storable, since this cache cannot apply the semantics it would be
// required to understand. 304 is deliberately absent: it never reaches
// IsStorable as a fresh response to store, only as a revalidation outcome
// handled by IsNotModified.
var understoodStatusCodes = map[int]bool{
	200: true, 203: true, 204: true, 206: true, 300: true,
	301: true, 308: true, 404: true, 405: true,
	410: true, 414: true, 451: true, 501: true,
}

// IsUnderstoodStatus reports whether this cache assigns defined caching
// semantics to resp's status code.
func IsUnderstoodStatus(resp Response) bool {
	return understoodStatusCodes[resp.StatusCode]
}
