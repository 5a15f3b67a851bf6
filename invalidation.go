package hishel

import (
	"net/http"
	"net/url"
)

// unsafeMethods are the request methods whose success invalidates stored
// responses for the target URI, per RFC 9111 section 4.4.
var unsafeMethods = map[string]bool{
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
	http.MethodPatch:  true,
}

// InvalidatesCache reports whether req/resp together trigger RFC 9111
// section 4.4 invalidation: an unsafe request method with a non-error
// (non 4xx/5xx) final response.
func InvalidatesCache(req Request, resp Response) bool {
	if !unsafeMethods[req.Method] {
		return false
	}
	return resp.StatusCode < 400
}

// InvalidationTargets returns the URIs whose cache entries must be
// invalidated as a result of req/resp: the effective request URI itself,
// plus any same-origin Location or Content-Location response header that
// points to the same resource under a different URI.
func InvalidationTargets(req Request, resp Response) []*url.URL {
	targets := []*url.URL{req.URL}

	for _, hdr := range []string{"Location", "Content-Location"} {
		raw := resp.Header.Get(hdr)
		if raw == "" {
			continue
		}
		ref, err := url.Parse(raw)
		if err != nil {
			continue
		}
		resolved := ref
		if req.URL != nil {
			resolved = req.URL.ResolveReference(ref)
		}
		if sameOrigin(req.URL, resolved) {
			targets = append(targets, resolved)
		}
	}
	return targets
}

func sameOrigin(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Scheme == b.Scheme && a.Host == b.Host
}
