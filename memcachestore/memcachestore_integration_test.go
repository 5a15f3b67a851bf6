//go:build integration

package memcachestore

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	testcontainersMemcache "github.com/testcontainers/testcontainers-go/modules/memcached"

	"github.com/hishelgo/hishel"
)

const (
	skipIntegrationMsg = "skipping integration test; use -tags=integration to enable"
	memcachedImage     = "memcached:1.6-alpine"
)

var sharedMemcachedEndpoint string

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := testcontainersMemcache.Run(ctx, memcachedImage)
	if err != nil {
		panic("failed to start Memcached container: " + err.Error())
	}

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		_ = testcontainers.TerminateContainer(container)
		panic("failed to get Memcached endpoint: " + err.Error())
	}
	sharedMemcachedEndpoint = endpoint

	code := m.Run()

	if err := testcontainers.TerminateContainer(container); err != nil {
		panic("failed to terminate Memcached container: " + err.Error())
	}
	os.Exit(code)
}

func newStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip(skipIntegrationMsg)
	}
	s, err := New([]string{sharedMemcachedEndpoint}, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_CreateAddGetRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	incomplete, err := s.CreatePair(ctx, "key-a", hishel.Request{
		Method: http.MethodGet,
		Body:   io.NopCloser(strings.NewReader("req body")),
	})
	if err != nil {
		t.Fatalf("CreatePair: %v", err)
	}
	if _, err := s.AddResponse(ctx, incomplete.ID, hishel.Response{
		StatusCode: 200,
		Body:       io.NopCloser(strings.NewReader("resp body")),
	}); err != nil {
		t.Fatalf("AddResponse: %v", err)
	}

	pairs, err := s.GetPairs(ctx, "key-a")
	if err != nil || len(pairs) != 1 {
		t.Fatalf("GetPairs: %v, %d pairs", err, len(pairs))
	}
	body, _ := io.ReadAll(pairs[0].Response.Body)
	if string(body) != "resp body" {
		t.Errorf("response body = %q", body)
	}
}

func TestStore_RemoveHidesFromGetPairs(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	incomplete, _ := s.CreatePair(ctx, "key-a", hishel.Request{Method: http.MethodGet})
	s.AddResponse(ctx, incomplete.ID, hishel.Response{StatusCode: 200})

	if err := s.Remove(ctx, incomplete.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	pairs, _ := s.GetPairs(ctx, "key-a")
	if len(pairs) != 0 {
		t.Errorf("expected removed pair to be invisible, got %d", len(pairs))
	}
}

func TestNew_RequiresAtLeastOneServer(t *testing.T) {
	if _, err := New(nil, 0); err == nil {
		t.Error("expected an error with zero servers")
	}
}
