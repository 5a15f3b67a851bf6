package multistore

import (
	"context"
	"net/http"
	"testing"

	"github.com/hishelgo/hishel"
	"github.com/hishelgo/hishel/memstore"
)

func TestNew_RequiresAtLeastOneTier(t *testing.T) {
	if _, err := New(); err == nil {
		t.Error("expected an error with zero tiers")
	}
}

func TestStorage_WritesLandOnPrimaryTier(t *testing.T) {
	fast := memstore.New()
	slow := memstore.New()
	s, err := New(fast, slow)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	pair, err := s.CreatePair(ctx, "key-a", hishel.Request{Method: http.MethodGet})
	if err != nil {
		t.Fatalf("CreatePair: %v", err)
	}
	if _, err := s.AddResponse(ctx, pair.ID, hishel.Response{StatusCode: 200}); err != nil {
		t.Fatalf("AddResponse: %v", err)
	}

	fastPairs, _ := fast.GetPairs(ctx, "key-a")
	if len(fastPairs) != 1 {
		t.Errorf("expected the primary (fast) tier to hold the pair, got %d", len(fastPairs))
	}
	slowPairs, _ := slow.GetPairs(ctx, "key-a")
	if len(slowPairs) != 0 {
		t.Errorf("expected the secondary tier to be untouched at write time, got %d", len(slowPairs))
	}
}

func TestStorage_GetPairsBackfillsFasterTiers(t *testing.T) {
	fast := memstore.New()
	slow := memstore.New()
	ctx := context.Background()

	incomplete, _ := slow.CreatePair(ctx, "key-a", hishel.Request{Method: http.MethodGet})
	slow.AddResponse(ctx, incomplete.ID, hishel.Response{StatusCode: 200})

	s, err := New(fast, slow)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	pairs, err := s.GetPairs(ctx, "key-a")
	if err != nil || len(pairs) != 1 {
		t.Fatalf("GetPairs: %v, %d pairs", err, len(pairs))
	}

	fastPairs, _ := fast.GetPairs(ctx, "key-a")
	if len(fastPairs) != 1 {
		t.Errorf("expected the hit from the slow tier to backfill the fast tier, got %d", len(fastPairs))
	}
}

func TestStorage_GetPairsMissAcrossAllTiersReturnsEmpty(t *testing.T) {
	s, err := New(memstore.New(), memstore.New())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	pairs, err := s.GetPairs(context.Background(), "key-a")
	if err != nil {
		t.Fatalf("GetPairs: %v", err)
	}
	if len(pairs) != 0 {
		t.Errorf("expected no pairs, got %d", len(pairs))
	}
}

func TestStorage_RemoveAndUpdateActOnPrimaryTier(t *testing.T) {
	fast := memstore.New()
	s, err := New(fast)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	pair, _ := s.CreatePair(ctx, "key-a", hishel.Request{Method: http.MethodGet})
	s.AddResponse(ctx, pair.ID, hishel.Response{StatusCode: 200})

	updated, err := s.UpdatePair(ctx, pair.ID, func(cp hishel.CompletePair) (hishel.CompletePair, error) {
		cp.Response.StatusCode = 304
		return cp, nil
	})
	if err != nil {
		t.Fatalf("UpdatePair: %v", err)
	}
	if updated.Response.StatusCode != 304 {
		t.Errorf("expected updated status 304, got %d", updated.Response.StatusCode)
	}

	if err := s.Remove(ctx, pair.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	pairs, _ := s.GetPairs(ctx, "key-a")
	if len(pairs) != 0 {
		t.Errorf("expected the pair to be gone after Remove, got %d", len(pairs))
	}
}

func TestStorage_CleanupAndCloseTouchAllTiers(t *testing.T) {
	fast := memstore.New()
	slow := memstore.New()
	s, err := New(fast, slow)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Cleanup(context.Background()); err != nil {
		t.Errorf("Cleanup: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
