package blobstore

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	_ "gocloud.dev/blob/memblob" // register mem:// scheme

	"github.com/hishelgo/hishel"
)

func open(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), "mem://", 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_CreateAddGetRoundTrip(t *testing.T) {
	s := open(t)
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
	s := open(t)
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

func TestOpen_ErrorsOnUnknownScheme(t *testing.T) {
	if _, err := Open(context.Background(), "not-a-real-scheme://bucket", 0); err == nil {
		t.Error("expected an error opening a bucket with an unregistered scheme")
	}
}
