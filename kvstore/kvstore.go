// Package kvstore adapts any simple byte-blob key/value client into a full
// hishel.Storage implementation. Most of the backend packages in this
// module (redisstore, memcachestore, freecachestore, diskstore,
// leveldbstore, natsstore, hazelcaststore, blobstore) are thin Blob
// implementations over their respective client library; kvstore.Store
// supplies the pair bookkeeping (ids, soft-delete, cache-key indexing,
// cleanup) once so each backend package stays as small as the teacher's
// own one-client-per-file cache wrappers.
//
// Bodies are buffered into the serialized record rather than streamed in
// chunks, since none of the wrapped clients expose a chunked-write API to
// stream through; sqlitestore is the backend that reproduces the original
// chunk-and-sentinel streaming storage exactly.
package kvstore

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hishelgo/hishel"
	"github.com/hishelgo/hishel/herrors"
)

// Blob is the minimal contract a backend client must provide. TTL of zero
// means "store indefinitely, until an explicit Delete".
type Blob interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// record is the gob-serializable snapshot of a pair stored under a single
// blob key.
type record struct {
	ID            uuid.UUID
	CacheKey      string
	Method        string
	URL           string
	ReqHeader     http.Header
	ReqBody       []byte
	CreatedAt     time.Time
	DeletedAt     *time.Time
	Complete      bool
	StatusCode    int
	RespHeader    http.Header
	RespBody      []byte
	RequestTime   time.Time
	ResponseTime  time.Time
	TTL           time.Duration
}

// index lists the pair ids stored under one cache key. Backends without a
// prefix-scan primitive (memcache, freecache, ...) need this side record to
// support GetPairs; it is read-modify-written under idxMu for each mutation
// and is therefore eventually, not atomically, consistent under concurrent
// writers hitting the *same* cache key from *different* processes. Single
// process callers are fully synchronized by idxMu.
type index struct {
	IDs []uuid.UUID
}

// Store implements hishel.Storage over a Blob client.
type Store struct {
	blob       Blob
	defaultTTL time.Duration
	idxMu      sync.Mutex
	seenKeys   map[string]struct{}
}

// New builds a Store. defaultTTL is applied to records and index entries
// when a pair carries no explicit TTL; zero means no expiry is requested
// from the backend (soft-delete and Cleanup still apply at the hishel
// level).
func New(blob Blob, defaultTTL time.Duration) *Store {
	return &Store{blob: blob, defaultTTL: defaultTTL, seenKeys: make(map[string]struct{})}
}

func recordKey(id uuid.UUID) string { return "hishel:pair:" + id.String() }
func indexKey(cacheKey string) string { return "hishel:index:" + cacheKey }

func init() {
	gob.Register(http.Header{})
}

func (s *Store) CreatePair(ctx context.Context, cacheKey string, req hishel.Request) (hishel.IncompletePair, error) {
	id := uuid.New()
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return hishel.IncompletePair{}, fmt.Errorf("%w: reading request body: %v", herrors.ErrStorage, err)
		}
	}

	rec := record{
		ID:        id,
		CacheKey:  cacheKey,
		Method:    req.Method,
		ReqHeader: req.Header,
		ReqBody:   body,
		CreatedAt: time.Now(),
		TTL:       pickTTL(req.Metadata.TTL, s.defaultTTL),
	}
	if req.URL != nil {
		rec.URL = req.URL.String()
	}

	if err := s.putRecord(ctx, rec); err != nil {
		return hishel.IncompletePair{}, err
	}
	if err := s.addToIndex(ctx, cacheKey, id, rec.TTL); err != nil {
		return hishel.IncompletePair{}, err
	}

	return hishel.IncompletePair{
		Pair: hishel.Pair{
			ID:      id,
			Request: req,
			Meta:    hishel.PairMeta{CreatedAt: rec.CreatedAt},
		},
	}, nil
}

func (s *Store) AddResponse(ctx context.Context, id uuid.UUID, resp hishel.Response) (hishel.CompletePair, error) {
	rec, err := s.getRecord(ctx, id)
	if err != nil {
		return hishel.CompletePair{}, err
	}
	if rec.Complete {
		return hishel.CompletePair{}, herrors.ErrAlreadyComplete
	}

	var body []byte
	if resp.Body != nil {
		body, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return hishel.CompletePair{}, fmt.Errorf("%w: reading response body: %v", herrors.ErrStorage, err)
		}
	}

	rec.Complete = true
	rec.StatusCode = resp.StatusCode
	rec.RespHeader = resp.Header
	rec.RespBody = body
	rec.RequestTime = resp.Metadata.RequestTime
	rec.ResponseTime = resp.Metadata.ResponseTime

	if err := s.putRecord(ctx, rec); err != nil {
		return hishel.CompletePair{}, err
	}
	return rec.toCompletePair(), nil
}

func (s *Store) GetPairs(ctx context.Context, cacheKey string) ([]hishel.CompletePair, error) {
	idx, err := s.getIndex(ctx, cacheKey)
	if err != nil {
		return nil, err
	}
	pairs := make([]hishel.CompletePair, 0, len(idx.IDs))
	for _, id := range idx.IDs {
		rec, err := s.getRecord(ctx, id)
		if err != nil {
			if err == herrors.ErrNotFound {
				continue
			}
			return nil, err
		}
		if !rec.Complete || rec.DeletedAt != nil {
			continue
		}
		pairs = append(pairs, rec.toCompletePair())
	}
	return pairs, nil
}

func (s *Store) UpdatePair(ctx context.Context, id uuid.UUID, fn func(hishel.CompletePair) (hishel.CompletePair, error)) (hishel.CompletePair, error) {
	rec, err := s.getRecord(ctx, id)
	if err != nil {
		return hishel.CompletePair{}, err
	}
	if !rec.Complete {
		return hishel.CompletePair{}, herrors.ErrNotFound
	}
	updated, err := fn(rec.toCompletePair())
	if err != nil {
		return hishel.CompletePair{}, err
	}
	if updated.ID != id {
		return hishel.CompletePair{}, herrors.ErrIDMismatch
	}

	newRec := fromCompletePair(updated, rec.TTL)
	if err := s.putRecord(ctx, newRec); err != nil {
		return hishel.CompletePair{}, err
	}
	return newRec.toCompletePair(), nil
}

func (s *Store) Remove(ctx context.Context, id uuid.UUID) error {
	rec, err := s.getRecord(ctx, id)
	if err != nil {
		if err == herrors.ErrNotFound {
			return nil
		}
		return err
	}
	if rec.DeletedAt == nil {
		now := time.Now()
		rec.DeletedAt = &now
		if err := s.putRecord(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// Cleanup soft-deletes records whose TTL has elapsed since CreatedAt and
// hard-deletes records past the soft-delete grace period. It walks
// every cache key this Store instance has seen via CreatePair; since most
// Blob clients expose no key-listing primitive, a cache key that was only
// ever indexed by a different process is not reachable here. Backends that
// need exhaustive reaping across a shared cluster should rely on the
// backend's own native TTL/eviction instead (each backend package notes
// whether it sets one).
func (s *Store) Cleanup(ctx context.Context) error {
	for _, cacheKey := range s.knownCacheKeys() {
		s.idxMu.Lock()
		idx, err := s.getIndex(ctx, cacheKey)
		if err != nil {
			s.idxMu.Unlock()
			continue
		}
		kept := idx.IDs[:0]
		for _, id := range idx.IDs {
			rec, err := s.getRecord(ctx, id)
			if err != nil {
				continue
			}
			if rec.DeletedAt == nil && rec.TTL > 0 && time.Since(rec.CreatedAt) > rec.TTL {
				now := time.Now()
				rec.DeletedAt = &now
				_ = s.putRecord(ctx, rec)
			}
			if rec.DeletedAt != nil && hishel.IsSafeToHardDelete(hishel.PairMeta{DeletedAt: rec.DeletedAt}, hishel.HardDeleteGrace) {
				_ = s.blob.Delete(ctx, recordKey(id))
				continue
			}
			kept = append(kept, id)
		}
		idx.IDs = kept
		_ = s.putIndex(ctx, cacheKey, idx, s.defaultTTL)
		s.idxMu.Unlock()
	}
	return nil
}

func (s *Store) Close() error { return nil }

var _ hishel.Storage = (*Store)(nil)

func (s *Store) putRecord(ctx context.Context, rec record) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return fmt.Errorf("%w: encoding pair: %v", herrors.ErrStorage, err)
	}
	if err := s.blob.Set(ctx, recordKey(rec.ID), buf.Bytes(), rec.TTL); err != nil {
		return fmt.Errorf("%w: %v", herrors.ErrStorage, err)
	}
	return nil
}

func (s *Store) getRecord(ctx context.Context, id uuid.UUID) (record, error) {
	raw, ok, err := s.blob.Get(ctx, recordKey(id))
	if err != nil {
		return record{}, fmt.Errorf("%w: %v", herrors.ErrStorage, err)
	}
	if !ok {
		return record{}, herrors.ErrNotFound
	}
	var rec record
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&rec); err != nil {
		return record{}, fmt.Errorf("%w: decoding pair: %v", herrors.ErrStorage, err)
	}
	return rec, nil
}

func (s *Store) getIndex(ctx context.Context, cacheKey string) (index, error) {
	raw, ok, err := s.blob.Get(ctx, indexKey(cacheKey))
	if err != nil {
		return index{}, fmt.Errorf("%w: %v", herrors.ErrStorage, err)
	}
	if !ok {
		return index{}, nil
	}
	var idx index
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&idx); err != nil {
		return index{}, fmt.Errorf("%w: decoding index: %v", herrors.ErrStorage, err)
	}
	return idx, nil
}

func (s *Store) putIndex(ctx context.Context, cacheKey string, idx index, ttl time.Duration) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(idx); err != nil {
		return fmt.Errorf("%w: encoding index: %v", herrors.ErrStorage, err)
	}
	if err := s.blob.Set(ctx, indexKey(cacheKey), buf.Bytes(), ttl); err != nil {
		return fmt.Errorf("%w: %v", herrors.ErrStorage, err)
	}
	return nil
}

func (s *Store) addToIndex(ctx context.Context, cacheKey string, id uuid.UUID, ttl time.Duration) error {
	s.idxMu.Lock()
	defer s.idxMu.Unlock()
	idx, err := s.getIndex(ctx, cacheKey)
	if err != nil {
		return err
	}
	idx.IDs = append(idx.IDs, id)
	s.seenKeys[cacheKey] = struct{}{}
	return s.putIndex(ctx, cacheKey, idx, ttl)
}

func (s *Store) knownCacheKeys() []string {
	s.idxMu.Lock()
	defer s.idxMu.Unlock()
	keys := make([]string, 0, len(s.seenKeys))
	for k := range s.seenKeys {
		keys = append(keys, k)
	}
	return keys
}

func pickTTL(requested, backendDefault time.Duration) time.Duration {
	if requested > 0 {
		return requested
	}
	return backendDefault
}

func (r record) toCompletePair() hishel.CompletePair {
	u, _ := url.Parse(r.URL)
	return hishel.CompletePair{
		Pair: hishel.Pair{
			ID: r.ID,
			Request: hishel.Request{
				Method: r.Method,
				URL:    u,
				Header: r.ReqHeader,
				Body:   io.NopCloser(bytes.NewReader(r.ReqBody)),
			},
			Meta: hishel.PairMeta{CreatedAt: r.CreatedAt, DeletedAt: r.DeletedAt},
		},
		CacheKey: r.CacheKey,
		Response: hishel.Response{
			StatusCode: r.StatusCode,
			Header:     r.RespHeader,
			Body:       io.NopCloser(bytes.NewReader(r.RespBody)),
			Metadata: hishel.ResponseMetadata{
				RequestTime:  r.RequestTime,
				ResponseTime: r.ResponseTime,
			},
		},
	}
}

func fromCompletePair(p hishel.CompletePair, ttl time.Duration) record {
	var reqBody, respBody []byte
	if p.Request.Body != nil {
		reqBody, _ = io.ReadAll(p.Request.Body)
	}
	if p.Response.Body != nil {
		respBody, _ = io.ReadAll(p.Response.Body)
	}
	u := ""
	if p.Request.URL != nil {
		u = p.Request.URL.String()
	}
	return record{
		ID:           p.ID,
		CacheKey:     p.CacheKey,
		Method:       p.Request.Method,
		URL:          u,
		ReqHeader:    p.Request.Header,
		ReqBody:      reqBody,
		CreatedAt:    p.Meta.CreatedAt,
		DeletedAt:    p.Meta.DeletedAt,
		Complete:     true,
		StatusCode:   p.Response.StatusCode,
		RespHeader:   p.Response.Header,
		RespBody:     respBody,
		RequestTime:  p.Response.Metadata.RequestTime,
		ResponseTime: p.Response.Metadata.ResponseTime,
		TTL:          ttl,
	}
}
