package hishel

// HasValidators reports whether resp carries a strong or weak validator
// that a conditional request can be built from.
func HasValidators(resp Response) bool {
	return resp.Header.Get("ETag") != "" || resp.Header.Get("Last-Modified") != ""
}

// BuildConditionalRequest copies req and adds If-None-Match / If-Modified-Since
// headers derived from stored's validators, per RFC 9111 section 4.3.1. The
// returned request otherwise carries the same method, URL, header and body
// as req; callers are expected to have already drained/cloned req.Body if
// it needs to be reused.
func BuildConditionalRequest(req Request, stored Response) Request {
	cond := req
	cond.Header = req.Header.Clone()
	if etag := stored.Header.Get("ETag"); etag != "" {
		cond.Header.Set("If-None-Match", etag)
	}
	if lm := stored.Header.Get("Last-Modified"); lm != "" {
		cond.Header.Set("If-Modified-Since", lm)
	}
	return cond
}

// IsNotModified reports whether resp is a 304 Not Modified validation
// response.
func IsNotModified(resp Response) bool {
	return resp.StatusCode == 304
}

// MergeValidationHeaders applies RFC 9111 section 4.3.4: when a 304 carries
// updated representation metadata, those header fields replace the stored
// response's corresponding fields, except for fields that a 304 must not
// carry meaning for (Content-Length is the origin's, not computed here).
func MergeValidationHeaders(stored Response, notModified Response) Response {
	merged := stored
	merged.Header = stored.Header.Clone()
	for name, values := range notModified.Header {
		if name == "Content-Length" {
			continue
		}
		merged.Header[name] = values
	}
	merged.Metadata.ResponseTime = notModified.Metadata.ResponseTime
	merged.Metadata.RequestTime = notModified.Metadata.RequestTime
	return merged
}
