// Package memstore is an in-process, map-backed hishel.Storage
// implementation, for tests and for single-process deployments that do not
// need cached responses to survive a restart.
package memstore

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hishelgo/hishel"
	"github.com/hishelgo/hishel/herrors"
)

type entry struct {
	pair     hishel.CompletePair
	complete bool
}

// Store is a thread-safe in-memory Storage.
type Store struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*entry
	byKey   map[string]map[uuid.UUID]struct{}
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		entries: make(map[uuid.UUID]*entry),
		byKey:   make(map[string]map[uuid.UUID]struct{}),
	}
}

func (s *Store) CreatePair(ctx context.Context, cacheKey string, req hishel.Request) (hishel.IncompletePair, error) {
	req.Body = drain(req.Body)

	id := uuid.New()
	createdAt := time.Now()

	s.mu.Lock()
	s.entries[id] = &entry{pair: hishel.CompletePair{
		Pair:     hishel.Pair{ID: id, Request: req, Meta: hishel.PairMeta{CreatedAt: createdAt}},
		CacheKey: cacheKey,
	}}
	if s.byKey[cacheKey] == nil {
		s.byKey[cacheKey] = make(map[uuid.UUID]struct{})
	}
	s.byKey[cacheKey][id] = struct{}{}
	s.mu.Unlock()

	return hishel.IncompletePair{
		Pair: hishel.Pair{ID: id, Request: req, Meta: hishel.PairMeta{CreatedAt: createdAt}},
	}, nil
}

func (s *Store) AddResponse(ctx context.Context, id uuid.UUID, resp hishel.Response) (hishel.CompletePair, error) {
	resp.Body = drain(resp.Body)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return hishel.CompletePair{}, herrors.ErrNotFound
	}
	if e.complete {
		return hishel.CompletePair{}, herrors.ErrAlreadyComplete
	}
	e.pair.Response = resp
	e.complete = true
	return clonePair(e.pair), nil
}

func (s *Store) GetPairs(ctx context.Context, cacheKey string) ([]hishel.CompletePair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byKey[cacheKey]
	pairs := make([]hishel.CompletePair, 0, len(ids))
	for id := range ids {
		e := s.entries[id]
		if e == nil || !e.complete {
			continue
		}
		if hishel.IsSoftDeleted(e.pair.Meta) {
			continue
		}
		pairs = append(pairs, clonePair(e.pair))
	}
	return pairs, nil
}

func (s *Store) UpdatePair(ctx context.Context, id uuid.UUID, fn func(hishel.CompletePair) (hishel.CompletePair, error)) (hishel.CompletePair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || !e.complete {
		return hishel.CompletePair{}, herrors.ErrNotFound
	}
	updated, err := fn(clonePair(e.pair))
	if err != nil {
		return hishel.CompletePair{}, err
	}
	if updated.ID != id {
		return hishel.CompletePair{}, herrors.ErrIDMismatch
	}
	e.pair = clonePair(updated)
	return clonePair(e.pair), nil
}

func (s *Store) Remove(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil
	}
	e.pair.Meta = hishel.MarkPairAsDeleted(e.pair.Meta)
	return nil
}

// Cleanup hard-deletes entries soft-deleted past hishel.HardDeleteGrace.
func (s *Store) Cleanup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.entries {
		if hishel.IsSafeToHardDelete(e.pair.Meta, hishel.HardDeleteGrace) {
			delete(s.entries, id)
			if ids := s.byKey[e.pair.CacheKey]; ids != nil {
				delete(ids, id)
			}
		}
	}
	return nil
}

func (s *Store) Close() error { return nil }

func drain(body io.ReadCloser) io.ReadCloser {
	if body == nil {
		return nil
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		data = nil
	}
	return newResettableBody(data)
}

// clonePair returns a copy of p whose bodies are fresh readers over the
// same bytes, so that each caller of GetPairs/UpdatePair gets an
// independent, re-readable stream.
func clonePair(p hishel.CompletePair) hishel.CompletePair {
	out := p
	out.Request.Body = rereadBody(p.Request.Body)
	out.Response.Body = rereadBody(p.Response.Body)
	return out
}

func rereadBody(body io.ReadCloser) io.ReadCloser {
	if body == nil {
		return nil
	}
	rb, ok := body.(*resettableBody)
	if !ok {
		return body
	}
	return newResettableBody(rb.data)
}

type resettableBody struct {
	data []byte
	*bytes.Reader
}

func newResettableBody(data []byte) *resettableBody {
	return &resettableBody{data: data, Reader: bytes.NewReader(data)}
}

func (r *resettableBody) Close() error { return nil }

var _ hishel.Storage = (*Store)(nil)
