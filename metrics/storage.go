package metrics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hishelgo/hishel"
)

// InstrumentedStorage wraps a hishel.Storage and reports every call to a
// Collector, without changing the wrapped backend's behavior.
type InstrumentedStorage struct {
	inner     hishel.Storage
	backend   string
	collector Collector
}

// Wrap returns a Storage that instruments inner, labeling metrics with
// backend (e.g. "sqlite", "redis"). A nil collector uses DefaultCollector.
func Wrap(inner hishel.Storage, backend string, collector Collector) *InstrumentedStorage {
	if collector == nil {
		collector = DefaultCollector
	}
	return &InstrumentedStorage{inner: inner, backend: backend, collector: collector}
}

func (s *InstrumentedStorage) record(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.collector.RecordOperation(op, s.backend, result, time.Since(start))
}

func (s *InstrumentedStorage) CreatePair(ctx context.Context, cacheKey string, req hishel.Request) (hishel.IncompletePair, error) {
	start := time.Now()
	p, err := s.inner.CreatePair(ctx, cacheKey, req)
	s.record("CreatePair", start, err)
	return p, err
}

func (s *InstrumentedStorage) AddResponse(ctx context.Context, id uuid.UUID, resp hishel.Response) (hishel.CompletePair, error) {
	start := time.Now()
	p, err := s.inner.AddResponse(ctx, id, resp)
	s.record("AddResponse", start, err)
	return p, err
}

func (s *InstrumentedStorage) GetPairs(ctx context.Context, cacheKey string) ([]hishel.CompletePair, error) {
	start := time.Now()
	pairs, err := s.inner.GetPairs(ctx, cacheKey)
	s.record("GetPairs", start, err)
	if err == nil {
		s.collector.RecordPairsReturned(s.backend, len(pairs))
	}
	return pairs, err
}

func (s *InstrumentedStorage) UpdatePair(ctx context.Context, id uuid.UUID, fn func(hishel.CompletePair) (hishel.CompletePair, error)) (hishel.CompletePair, error) {
	start := time.Now()
	p, err := s.inner.UpdatePair(ctx, id, fn)
	s.record("UpdatePair", start, err)
	return p, err
}

func (s *InstrumentedStorage) Remove(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	err := s.inner.Remove(ctx, id)
	s.record("Remove", start, err)
	return err
}

func (s *InstrumentedStorage) Cleanup(ctx context.Context) error {
	start := time.Now()
	err := s.inner.Cleanup(ctx)
	s.record("Cleanup", start, err)
	return err
}

func (s *InstrumentedStorage) Close() error { return s.inner.Close() }

var _ hishel.Storage = (*InstrumentedStorage)(nil)
