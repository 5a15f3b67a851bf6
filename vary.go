package hishel

import (
	"net/http"
	"strings"
)

// VaryHeaderNames extracts the field names listed in resp's Vary header. A
// lone "*" means the response varies on something outside the header set
// entirely, so no request can ever match it again; callers should treat
// that case as "never reusable" rather than iterating the (empty) result.
func VaryHeaderNames(resp Response) (names []string, matchesAnything bool) {
	for _, line := range resp.Header.Values("Vary") {
		for _, f := range strings.Split(line, ",") {
			f = strings.TrimSpace(f)
			if f == "" {
				continue
			}
			if f == "*" {
				return nil, true
			}
			names = append(names, f)
		}
	}
	return names, false
}

// MatchesVary reports whether candidate carries the same values, for every
// header named in stored's Vary response header, as original did when the
// pair was created. Per RFC 9111 section 4.1, a stored response may only
// answer a later request if they agree on all of the varying headers.
func MatchesVary(stored CompletePair, candidate Request) bool {
	names, matchesAnything := VaryHeaderNames(stored.Response)
	if matchesAnything {
		return false
	}
	for _, name := range names {
		if !headerValuesEqual(stored.Request.Header, candidate.Header, name) {
			return false
		}
	}
	return true
}

func headerValuesEqual(a, b http.Header, name string) bool {
	av, bv := a.Values(name), b.Values(name)
	if len(av) != len(bv) {
		return false
	}
	for i := range av {
		if av[i] != bv[i] {
			return false
		}
	}
	return true
}
