//go:build integration

package mongostore

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/testcontainers/testcontainers-go/modules/mongodb"

	"github.com/hishelgo/hishel"
)

const skipIntegrationMsg = "skipping integration test; use -tags=integration to enable"

func newStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip(skipIntegrationMsg)
	}
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:8", mongodb.WithUsername("root"), mongodb.WithPassword("password"))
	if err != nil {
		t.Fatalf("failed to start MongoDB container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate MongoDB container: %v", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get MongoDB connection string: %v", err)
	}

	s, err := Open(ctx, uri, "hishel_test", "entries")
	if err != nil {
		t.Fatalf("Open: %v", err)
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

func TestStore_UpdatePairReplacesResponse(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	incomplete, _ := s.CreatePair(ctx, "key-a", hishel.Request{Method: http.MethodGet})
	s.AddResponse(ctx, incomplete.ID, hishel.Response{StatusCode: 200})

	updated, err := s.UpdatePair(ctx, incomplete.ID, func(cp hishel.CompletePair) (hishel.CompletePair, error) {
		cp.Response.StatusCode = 304
		return cp, nil
	})
	if err != nil {
		t.Fatalf("UpdatePair: %v", err)
	}
	if updated.Response.StatusCode != 304 {
		t.Errorf("expected 304, got %d", updated.Response.StatusCode)
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
