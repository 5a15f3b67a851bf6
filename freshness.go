package hishel

import (
	"net/http"
	"time"
)

// heuristicFreshnessCap bounds the heuristic freshness lifetime computed
// from Last-Modified, per RFC 9111 section 4.2.2's recommendation to apply
// a reasonable upper bound.
const heuristicFreshnessCap = 24 * time.Hour

// FreshnessLifetime computes how long resp is considered fresh, per RFC
// 9111 section 4.2.1: a shared cache prefers s-maxage over max-age, a
// private cache never looks at s-maxage, and in the absence of either an
// Expires header (relative to Date) is used. When none of max-age,
// s-maxage, or Expires is present, section 4.2.2's heuristic applies: 10%
// of the time since Last-Modified, capped at heuristicFreshnessCap. A
// response with none of these signals is treated as stale (zero).
func FreshnessLifetime(resp Response, shared bool) time.Duration {
	cc := parseCacheControl(resp.Header)

	if shared && cc.SMaxAge != nil {
		return time.Duration(*cc.SMaxAge) * time.Second
	}
	if cc.MaxAge != nil {
		return time.Duration(*cc.MaxAge) * time.Second
	}

	if expires := resp.Header.Get("Expires"); expires != "" {
		expTime, err := http.ParseTime(expires)
		if err != nil {
			return 0
		}
		dateValue, ok := parseHTTPDate(resp.Header.Get("Date"))
		if !ok {
			dateValue = resp.Metadata.ResponseTime
		}
		lifetime := expTime.Sub(dateValue)
		if lifetime < 0 {
			return 0
		}
		return lifetime
	}

	if lastModified, ok := parseHTTPDate(resp.Header.Get("Last-Modified")); ok {
		dateValue, ok := parseHTTPDate(resp.Header.Get("Date"))
		if !ok {
			dateValue = resp.Metadata.ResponseTime
		}
		age := dateValue.Sub(lastModified)
		if age <= 0 {
			return 0
		}
		heuristic := age / 10
		if heuristic > heuristicFreshnessCap {
			heuristic = heuristicFreshnessCap
		}
		return heuristic
	}

	return 0
}

// IsFresh reports whether resp is still within its freshness lifetime at
// now, per RFC 9111 section 4.2.
func IsFresh(resp Response, shared bool, now time.Time) bool {
	return CalculateAge(resp, now) < FreshnessLifetime(resp, shared)
}

// StaleWhileRevalidateWindow returns the stale-while-revalidate extension
// (RFC 5861 section 3) if resp's Cache-Control carries one, else zero.
func StaleWhileRevalidateWindow(resp Response) time.Duration {
	cc := parseCacheControl(resp.Header)
	if cc.StaleWhileRevalidate == nil {
		return 0
	}
	return time.Duration(*cc.StaleWhileRevalidate) * time.Second
}

// StaleIfErrorWindow returns the stale-if-error extension (RFC 5861
// section 4) from resp's Cache-Control if present, otherwise from req's
// Cache-Control, else zero, since stale-if-error may be sent by either
// side.
func StaleIfErrorWindow(resp Response, req Request) time.Duration {
	respCC := parseCacheControl(resp.Header)
	if respCC.StaleIfError != nil {
		return time.Duration(*respCC.StaleIfError) * time.Second
	}
	if req.Header != nil {
		reqCC := parseCacheControl(req.Header)
		if reqCC.StaleIfError != nil {
			return time.Duration(*reqCC.StaleIfError) * time.Second
		}
	}
	return 0
}

// AllowsStaleWhileRevalidate reports whether resp may be served stale, with
// a background revalidation, at now.
func AllowsStaleWhileRevalidate(resp Response, shared bool, now time.Time) bool {
	window := StaleWhileRevalidateWindow(resp)
	if window <= 0 {
		return false
	}
	age := CalculateAge(resp, now)
	return age < FreshnessLifetime(resp, shared)+window
}

// AllowsStaleIfError reports whether resp may be served stale at now
// because the origin is erroring, per the stale-if-error extension
// negotiated by either side.
func AllowsStaleIfError(resp Response, req Request, shared bool, now time.Time) bool {
	window := StaleIfErrorWindow(resp, req)
	if window <= 0 {
		return false
	}
	age := CalculateAge(resp, now)
	return age < FreshnessLifetime(resp, shared)+window
}

// MustRevalidateOnStale reports whether a stale resp must never be served
// without successful revalidation, per the must-revalidate and
// proxy-revalidate (shared-cache only) directives.
func MustRevalidateOnStale(resp Response, shared bool) bool {
	cc := parseCacheControl(resp.Header)
	if cc.MustRevalidate {
		return true
	}
	return shared && cc.ProxyRevalidate
}
