package freecachestore

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/hishelgo/hishel"
)

func TestStore_CreateAddGetRoundTrip(t *testing.T) {
	s := New(1<<20, time.Hour)
	defer s.Close()
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
	s := New(1<<20, time.Hour)
	defer s.Close()
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

func TestStore_ZeroTTLEntriesSurviveUntilEviction(t *testing.T) {
	s := New(1<<20, 0)
	defer s.Close()
	ctx := context.Background()

	incomplete, _ := s.CreatePair(ctx, "key-a", hishel.Request{Method: http.MethodGet})
	if _, err := s.AddResponse(ctx, incomplete.ID, hishel.Response{StatusCode: 200}); err != nil {
		t.Fatalf("AddResponse: %v", err)
	}
	pairs, err := s.GetPairs(ctx, "key-a")
	if err != nil || len(pairs) != 1 {
		t.Fatalf("GetPairs: %v, %d pairs", err, len(pairs))
	}
}
