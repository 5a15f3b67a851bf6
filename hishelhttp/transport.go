// Package hishelhttp adapts hishel's RFC 9111 caching core to net/http,
// exposing it as an http.RoundTripper. All caching semantics live in
// hishel.CacheProxy; this package only translates between *http.Request /
// *http.Response and hishel's wire-agnostic Request / Response types.
package hishelhttp

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/hishelgo/hishel"
)

// XFromCache is set to "1" on responses served, in whole or in part, from
// the cache.
const XFromCache = "X-From-Cache"

// XRevalidated is set to "1" on responses that were revalidated against the
// origin and confirmed still fresh via a 304.
const XRevalidated = "X-Revalidated"

// Transport is an http.RoundTripper that caches responses per RFC 9111,
// delegating the network round trip to an inner http.RoundTripper and all
// caching decisions to a hishel.CacheProxy.
type Transport struct {
	// Next performs the actual HTTP round trip. Defaults to
	// http.DefaultTransport.
	Next http.RoundTripper
	// Storage backs the cache. Required.
	Storage hishel.Storage
	// Options configures shared-vs-private semantics, default TTLs and the
	// cache key generator. See hishel.CacheOption.
	Options []hishel.CacheOption

	proxy *hishel.CacheProxy
}

// client returns the configured RoundTripper, defaulting to
// http.DefaultTransport.
func (t *Transport) client() http.RoundTripper {
	if t.Next != nil {
		return t.Next
	}
	return http.DefaultTransport
}

// ensureProxy lazily builds the CacheProxy wrapping t.client's RoundTrip
// method, so Transport can be constructed as a plain struct literal.
func (t *Transport) ensureProxy() *hishel.CacheProxy {
	if t.proxy == nil {
		t.proxy = hishel.NewCacheProxy(t.send, t.Storage, t.Options...)
	}
	return t.proxy
}

func (t *Transport) send(ctx context.Context, req hishel.Request) (hishel.Response, error) {
	httpReq, err := toHTTPRequest(ctx, req)
	if err != nil {
		return hishel.Response{}, err
	}
	httpResp, err := t.client().RoundTrip(httpReq)
	if err != nil {
		return hishel.Response{}, err
	}
	return fromHTTPResponse(httpResp), nil
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	hreq, err := fromHTTPRequest(req)
	if err != nil {
		return nil, err
	}

	resp, err := t.ensureProxy().Handle(req.Context(), hreq)
	if err != nil {
		return nil, err
	}

	httpResp, err := toHTTPResponse(req, resp)
	if err != nil {
		return nil, err
	}
	if resp.Metadata.FromCache {
		httpResp.Header.Set(XFromCache, "1")
	}
	if resp.Metadata.Revalidated {
		httpResp.Header.Set(XRevalidated, "1")
	}
	return httpResp, nil
}

// Client returns an *http.Client using this Transport.
func (t *Transport) Client() *http.Client {
	return &http.Client{Transport: t}
}

func fromHTTPRequest(req *http.Request) (hishel.Request, error) {
	var body []byte
	if req.Body != nil {
		defer req.Body.Close()
		b, err := io.ReadAll(req.Body)
		if err != nil {
			return hishel.Request{}, err
		}
		body = b
		req.Body = io.NopCloser(bytes.NewReader(body))
	}
	reqURL := new(url.URL)
	*reqURL = *req.URL
	return hishel.Request{
		Method: req.Method,
		URL:    reqURL,
		Header: req.Header.Clone(),
		Body:   io.NopCloser(bytes.NewReader(body)),
	}, nil
}

func toHTTPRequest(ctx context.Context, req hishel.Request) (*http.Request, error) {
	var body io.Reader
	if req.Body != nil {
		body = req.Body
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), body)
	if err != nil {
		return nil, err
	}
	httpReq.Header = req.Header.Clone()
	return httpReq, nil
}

func fromHTTPResponse(resp *http.Response) hishel.Response {
	return hishel.Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       resp.Body,
	}
}

func toHTTPResponse(req *http.Request, resp hishel.Response) (*http.Response, error) {
	var body io.ReadCloser = http.NoBody
	if resp.Body != nil {
		body = resp.Body
	}
	httpResp := &http.Response{
		StatusCode: resp.StatusCode,
		Status:     http.StatusText(resp.StatusCode),
		Header:     resp.Header.Clone(),
		Body:       body,
		Request:    req,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
	}
	return httpResp, nil
}
