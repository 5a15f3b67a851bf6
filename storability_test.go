package hishel

import (
	"net/http"
	"testing"
)

func TestIsStorable(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		resp Response
		opts CacheOptions
		want bool
	}{
		{
			name: "POST is never storable",
			req:  Request{Method: http.MethodPost, Header: http.Header{}},
			resp: Response{StatusCode: 200, Header: http.Header{"Cache-Control": {"max-age=60"}}},
			want: false,
		},
		{
			name: "request no-store blocks storage",
			req:  Request{Method: http.MethodGet, Header: http.Header{"Cache-Control": {"no-store"}}},
			resp: Response{StatusCode: 200, Header: http.Header{"Cache-Control": {"max-age=60"}}},
			want: false,
		},
		{
			name: "response no-store blocks storage",
			req:  Request{Method: http.MethodGet, Header: http.Header{}},
			resp: Response{StatusCode: 200, Header: http.Header{"Cache-Control": {"no-store"}}},
			want: false,
		},
		{
			name: "shared cache must not store a private response",
			req:  Request{Method: http.MethodGet, Header: http.Header{}},
			resp: Response{StatusCode: 200, Header: http.Header{"Cache-Control": {"private, max-age=60"}}},
			opts: CacheOptions{Shared: true},
			want: false,
		},
		{
			name: "private cache may store a private response",
			req:  Request{Method: http.MethodGet, Header: http.Header{}},
			resp: Response{StatusCode: 200, Header: http.Header{"Cache-Control": {"private, max-age=60"}}},
			want: true,
		},
		{
			name: "shared cache must not store an authorized response without an override",
			req:  Request{Method: http.MethodGet, Header: http.Header{"Authorization": {"Bearer xyz"}}},
			resp: Response{StatusCode: 200, Header: http.Header{"Cache-Control": {"max-age=60"}}},
			opts: CacheOptions{Shared: true},
			want: false,
		},
		{
			name: "shared cache may store an authorized response with public",
			req:  Request{Method: http.MethodGet, Header: http.Header{"Authorization": {"Bearer xyz"}}},
			resp: Response{StatusCode: 200, Header: http.Header{"Cache-Control": {"public, max-age=60"}}},
			opts: CacheOptions{Shared: true},
			want: true,
		},
		{
			name: "must-understand with an understood status and freshness info is storable",
			req:  Request{Method: http.MethodGet, Header: http.Header{}},
			resp: Response{StatusCode: 200, Header: http.Header{"Cache-Control": {"must-understand, max-age=60"}}},
			want: true,
		},
		{
			name: "must-understand with an unrecognized status blocks storage",
			req:  Request{Method: http.MethodGet, Header: http.Header{}},
			resp: Response{StatusCode: 418, Header: http.Header{"Cache-Control": {"must-understand, max-age=60"}}},
			want: false,
		},
		{
			name: "default-cacheable status with no explicit directives is storable",
			req:  Request{Method: http.MethodGet, Header: http.Header{}},
			resp: Response{StatusCode: 404, Header: http.Header{}},
			want: true,
		},
		{
			name: "understood but not heuristically-cacheable status with no directives is not storable",
			req:  Request{Method: http.MethodGet, Header: http.Header{}},
			resp: Response{StatusCode: 308, Header: http.Header{}},
			want: false,
		},
		{
			name: "HEAD is storable",
			req:  Request{Method: http.MethodHead, Header: http.Header{}},
			resp: Response{StatusCode: 200, Header: http.Header{"Cache-Control": {"max-age=60"}}},
			want: true,
		},
		{
			name: "non-final status is never storable even with explicit freshness",
			req:  Request{Method: http.MethodGet, Header: http.Header{}},
			resp: Response{StatusCode: 101, Header: http.Header{"Cache-Control": {"max-age=3600"}}},
			want: false,
		},
		{
			name: "unrecognized status is never storable even without must-understand",
			req:  Request{Method: http.MethodGet, Header: http.Header{}},
			resp: Response{StatusCode: 201, Header: http.Header{"Cache-Control": {"max-age=3600"}}},
			want: false,
		},
		{
			name: "304 is never storable as if it were a fresh response",
			req:  Request{Method: http.MethodGet, Header: http.Header{}},
			resp: Response{StatusCode: 304, Header: http.Header{"Cache-Control": {"max-age=3600"}}},
			want: false,
		},
		{
			name: "OPTIONS is not storable by default",
			req:  Request{Method: http.MethodOptions, Header: http.Header{}},
			resp: Response{StatusCode: 200, Header: http.Header{"Cache-Control": {"max-age=60"}}},
			want: false,
		},
		{
			name: "OPTIONS is storable once whitelisted via SupportedMethods",
			req:  Request{Method: http.MethodOptions, Header: http.Header{}},
			resp: Response{StatusCode: 200, Header: http.Header{"Cache-Control": {"max-age=60"}}},
			opts: CacheOptions{SupportedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions}},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsStorable(tt.req, tt.resp, tt.opts); got != tt.want {
				t.Errorf("IsStorable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsUnderstoodStatus(t *testing.T) {
	if !IsUnderstoodStatus(Response{StatusCode: 200}) {
		t.Error("expected 200 to be understood")
	}
	if !IsUnderstoodStatus(Response{StatusCode: 451}) {
		t.Error("expected 451 to be understood")
	}
	if IsUnderstoodStatus(Response{StatusCode: 304}) {
		t.Error("expected 304 to not be understood")
	}
	if IsUnderstoodStatus(Response{StatusCode: 418}) {
		t.Error("expected 418 to not be understood")
	}
}

func TestRequiresUnderstoodStatus(t *testing.T) {
	if !RequiresUnderstoodStatus(Response{Header: http.Header{"Cache-Control": {"must-understand"}}}) {
		t.Error("expected must-understand to require an understood status")
	}
	if RequiresUnderstoodStatus(Response{Header: http.Header{}}) {
		t.Error("expected no requirement without must-understand")
	}
}

func TestMethodSupported(t *testing.T) {
	if !methodSupported(http.MethodGet, nil) {
		t.Error("expected GET supported by default")
	}
	if !methodSupported(http.MethodHead, nil) {
		t.Error("expected HEAD supported by default")
	}
	if methodSupported(http.MethodOptions, nil) {
		t.Error("expected OPTIONS unsupported by default")
	}
	if !methodSupported("options", []string{http.MethodOptions}) {
		t.Error("expected method comparison to be case-insensitive")
	}
}
