package hishel

import (
	"net/http"
	"net/url"
	"testing"
)

func TestInvalidatesCache(t *testing.T) {
	tests := []struct {
		name   string
		method string
		status int
		want   bool
	}{
		{"successful POST invalidates", http.MethodPost, 200, true},
		{"successful PUT invalidates", http.MethodPut, 204, true},
		{"successful DELETE invalidates", http.MethodDelete, 200, true},
		{"successful PATCH invalidates", http.MethodPatch, 200, true},
		{"GET never invalidates", http.MethodGet, 200, false},
		{"failed POST does not invalidate", http.MethodPost, 500, false},
		{"client-error POST does not invalidate", http.MethodPost, 404, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := Request{Method: tt.method}
			resp := Response{StatusCode: tt.status}
			if got := InvalidatesCache(req, resp); got != tt.want {
				t.Errorf("InvalidatesCache() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInvalidationTargets(t *testing.T) {
	reqURL, _ := url.Parse("https://example.com/articles/1")

	t.Run("always includes the request URI", func(t *testing.T) {
		req := Request{URL: reqURL}
		resp := Response{Header: http.Header{}}
		targets := InvalidationTargets(req, resp)
		if len(targets) != 1 || targets[0].String() != reqURL.String() {
			t.Errorf("unexpected targets: %v", targets)
		}
	})

	t.Run("includes a same-origin Location", func(t *testing.T) {
		req := Request{URL: reqURL}
		resp := Response{Header: http.Header{"Location": {"/articles/1/canonical"}}}
		targets := InvalidationTargets(req, resp)
		if len(targets) != 2 {
			t.Fatalf("expected 2 targets, got %d: %v", len(targets), targets)
		}
		if targets[1].Path != "/articles/1/canonical" {
			t.Errorf("unexpected resolved Location target: %v", targets[1])
		}
	})

	t.Run("excludes a cross-origin Content-Location", func(t *testing.T) {
		req := Request{URL: reqURL}
		resp := Response{Header: http.Header{"Content-Location": {"https://other.example.com/articles/1"}}}
		targets := InvalidationTargets(req, resp)
		if len(targets) != 1 {
			t.Errorf("expected cross-origin target to be excluded, got %v", targets)
		}
	})
}
