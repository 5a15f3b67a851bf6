package resilience

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/hishelgo/hishel"
	"github.com/hishelgo/hishel/memstore"
)

type flakyStorage struct {
	hishel.Storage
	failures int
}

func (f *flakyStorage) CreatePair(ctx context.Context, cacheKey string, req hishel.Request) (hishel.IncompletePair, error) {
	if f.failures > 0 {
		f.failures--
		return hishel.IncompletePair{}, errors.New("temporary failure")
	}
	return f.Storage.CreatePair(ctx, cacheKey, req)
}

func TestWrap_RetriesTransientFailures(t *testing.T) {
	inner := &flakyStorage{Storage: memstore.New(), failures: 2}
	s := Wrap(inner, Config{MaxRetries: 3, RetryDelay: time.Millisecond})

	_, err := s.CreatePair(context.Background(), "key-a", hishel.Request{Method: http.MethodGet})
	if err != nil {
		t.Fatalf("expected the retry policy to absorb 2 transient failures, got %v", err)
	}
}

func TestWrap_GivesUpAfterMaxRetries(t *testing.T) {
	inner := &flakyStorage{Storage: memstore.New(), failures: 10}
	s := Wrap(inner, Config{MaxRetries: 2, RetryDelay: time.Millisecond})

	_, err := s.CreatePair(context.Background(), "key-a", hishel.Request{Method: http.MethodGet})
	if err == nil {
		t.Fatal("expected an error once retries are exhausted")
	}
}

func TestWrap_PassesThroughWithoutPolicies(t *testing.T) {
	s := Wrap(memstore.New(), Config{})
	pair, err := s.CreatePair(context.Background(), "key-a", hishel.Request{Method: http.MethodGet})
	if err != nil {
		t.Fatalf("CreatePair: %v", err)
	}
	if _, err := s.AddResponse(context.Background(), pair.ID, hishel.Response{StatusCode: 200}); err != nil {
		t.Fatalf("AddResponse: %v", err)
	}
	pairs, err := s.GetPairs(context.Background(), "key-a")
	if err != nil || len(pairs) != 1 {
		t.Fatalf("GetPairs: %v, %d pairs", err, len(pairs))
	}
}
