package hishel

import (
	"net/http"
	"strconv"
	"strings"
)

// cacheControl holds the parsed directives from a Cache-Control header,
// as defined by RFC 9111 section 5.2. Unknown directives are kept verbatim
// in Extensions; malformed delta-seconds arguments are treated as absent rather than
// rejecting the whole header, per section 5.2.1's robustness guidance.
type cacheControl struct {
	NoStore       bool
	NoCache       bool
	NoCacheFields []string // field names from no-cache="f1, f2" (empty slice: no-cache with no args)

	Private       bool
	PrivateFields []string

	Public bool

	MaxAge          *int64
	SMaxAge         *int64
	MaxStale        *int64 // request-only; MaxStale != nil && *MaxStale < 0 means "any age"
	MinFresh        *int64
	MustRevalidate  bool
	ProxyRevalidate bool
	Immutable       bool
	MustUnderstand  bool
	NoTransform     bool
	OnlyIfCached    bool

	StaleWhileRevalidate *int64
	StaleIfError         *int64

	// Extensions holds directive tokens this parser does not assign
	// dedicated semantics to, verbatim ("name" or "name=value"), per RFC
	// 9111 section 5.2.3: an unrecognized directive is preserved, not
	// discarded, since a downstream consumer or relay may understand it.
	Extensions []string
}

// parseCacheControl parses every Cache-Control header line present in h.
// RFC 9111 section 5.2 treats Cache-Control as a single comma-separated
// list even when split across repeated header fields, which is exactly how
// http.Header.Values joins them for retrieval here.
func parseCacheControl(h http.Header) cacheControl {
	var cc cacheControl
	cc.NoCacheFields = nil
	cc.PrivateFields = nil

	for _, line := range h.Values("Cache-Control") {
		for _, tok := range splitDirectives(line) {
			name, arg, hasArg := cutDirective(tok)
			switch strings.ToLower(name) {
			case "no-store":
				cc.NoStore = true
			case "no-cache":
				cc.NoCache = true
				if hasArg {
					cc.NoCacheFields = append(cc.NoCacheFields, splitFieldList(arg)...)
				}
			case "private":
				cc.Private = true
				if hasArg {
					cc.PrivateFields = append(cc.PrivateFields, splitFieldList(arg)...)
				}
			case "public":
				cc.Public = true
			case "max-age":
				cc.MaxAge = parseDeltaSeconds(arg, hasArg)
			case "s-maxage":
				cc.SMaxAge = parseDeltaSeconds(arg, hasArg)
			case "max-stale":
				if hasArg {
					cc.MaxStale = parseDeltaSeconds(arg, hasArg)
				} else {
					any := int64(-1)
					cc.MaxStale = &any
				}
			case "min-fresh":
				cc.MinFresh = parseDeltaSeconds(arg, hasArg)
			case "must-revalidate":
				cc.MustRevalidate = true
			case "proxy-revalidate":
				cc.ProxyRevalidate = true
			case "immutable":
				cc.Immutable = true
			case "must-understand":
				cc.MustUnderstand = true
			case "no-transform":
				cc.NoTransform = true
			case "only-if-cached":
				cc.OnlyIfCached = true
			case "stale-while-revalidate":
				cc.StaleWhileRevalidate = parseDeltaSeconds(arg, hasArg)
			case "stale-if-error":
				cc.StaleIfError = parseDeltaSeconds(arg, hasArg)
			default:
				cc.Extensions = append(cc.Extensions, tok)
			}
		}
	}
	return cc
}

// splitDirectives splits a Cache-Control field value on top-level commas,
// respecting commas embedded inside a quoted-string argument such as
// no-cache="Set-Cookie, Authorization".
func splitDirectives(line string) []string {
	var toks []string
	var cur strings.Builder
	inQuotes := false
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			cur.WriteRune(r)
		case r == ',' && !inQuotes:
			toks = append(toks, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		toks = append(toks, s)
	}
	return toks
}

// cutDirective splits "name=value" or "name" into its parts, unquoting a
// quoted-string value.
func cutDirective(tok string) (name, arg string, hasArg bool) {
	name, arg, hasArg = strings.Cut(tok, "=")
	name = strings.TrimSpace(name)
	arg = strings.TrimSpace(arg)
	if hasArg && len(arg) >= 2 && arg[0] == '"' && arg[len(arg)-1] == '"' {
		arg = arg[1 : len(arg)-1]
	}
	return name, arg, hasArg
}

func splitFieldList(arg string) []string {
	parts := strings.Split(arg, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// maxDeltaSeconds is the largest delta-seconds value RFC 9111 section 1.2.2
// allows a recipient to assign: values above it are clamped rather than
// rejected, since a sender emitting a larger number almost certainly means
// "effectively forever", not "reject this response".
const maxDeltaSeconds = (1 << 31) - 1

// parseDeltaSeconds converts a delta-seconds argument. A missing or
// non-numeric argument is treated as absent (nil) rather than an error,
// matching the robustness requirement of RFC 9111 section 5.2.1: a bad
// max-age should not crash the cache, it should behave as if max-age were
// not present. A value that parses but overflows delta-seconds' range is
// clamped to maxDeltaSeconds rather than discarded.
func parseDeltaSeconds(arg string, hasArg bool) *int64 {
	if !hasArg {
		return nil
	}
	n, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || n < 0 {
		return nil
	}
	if n > maxDeltaSeconds {
		n = maxDeltaSeconds
	}
	return &n
}
