package hishel

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"sort"
	"strings"
)

// KeyGen derives the cache key grouping every pair that could answer req.
// The default implementation hashes method and URL; CacheHeaders augments
// it to additionally bind on the value of specific headers (e.g.
// Authorization, or a tenant id header), so that two requests differing
// only in that header never share a cache key.
type KeyGen func(req Request) string

// DefaultKeyGen hashes the request method and absolute URL, matching RFC
// 9111's baseline definition of the cache key (section 2).
func DefaultKeyGen(req Request) string {
	h := sha256.New()
	io.WriteString(h, req.Method)
	h.Write([]byte{0})
	if req.URL != nil {
		io.WriteString(h, req.URL.String())
	}
	return hex.EncodeToString(h.Sum(nil))
}

// CacheHeaders wraps a KeyGen so the resulting key also binds on the
// (case-insensitive) values of the named request headers. Use this to keep
// responses for different API keys or tenants from colliding in a shared
// store.
func CacheHeaders(base KeyGen, headers ...string) KeyGen {
	if base == nil {
		base = DefaultKeyGen
	}
	names := append([]string(nil), headers...)
	sort.Strings(names)
	return func(req Request) string {
		h := sha256.New()
		io.WriteString(h, base(req))
		for _, name := range names {
			h.Write([]byte{0})
			io.WriteString(h, strings.ToLower(name))
			h.Write([]byte{'='})
			if req.Header != nil {
				io.WriteString(h, req.Header.Get(name))
			}
		}
		return hex.EncodeToString(h.Sum(nil))
	}
}
