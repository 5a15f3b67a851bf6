// Package compress wraps a hishel.Storage so that request and response
// bodies are compressed before reaching the underlying backend and
// decompressed transparently on read, trading CPU for the storage/network
// footprint of cached payloads. Three algorithms are supported, grounded in
// the same three the rest of this module already depends on: gzip
// (compress/gzip, stdlib), brotli (github.com/andybalholm/brotli), and
// snappy (github.com/golang/snappy).
package compress

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/golang/snappy"
	"github.com/google/uuid"

	"github.com/hishelgo/hishel"
)

// Algorithm selects the compression codec applied to stored bodies.
type Algorithm int

const (
	Gzip Algorithm = iota
	Brotli
	Snappy
)

func (a Algorithm) String() string {
	switch a {
	case Gzip:
		return "gzip"
	case Brotli:
		return "brotli"
	case Snappy:
		return "snappy"
	default:
		return "unknown"
	}
}

// Storage wraps inner, compressing bodies with Algorithm before delegating
// to it and decompressing them again on every read path.
type Storage struct {
	inner hishel.Storage
	algo  Algorithm
}

// Wrap builds a compressing Storage around inner.
func Wrap(inner hishel.Storage, algo Algorithm) *Storage {
	return &Storage{inner: inner, algo: algo}
}

func (s *Storage) compress(body io.ReadCloser) (io.ReadCloser, error) {
	if body == nil {
		return nil, nil
	}
	defer body.Close()
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("compress: reading body: %w", err)
	}

	var buf bytes.Buffer
	switch s.algo {
	case Brotli:
		w := brotli.NewWriter(&buf)
		if _, err := w.Write(raw); err != nil {
			return nil, fmt.Errorf("compress: brotli: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("compress: brotli: %w", err)
		}
	case Snappy:
		buf.Write(snappy.Encode(nil, raw))
	default:
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(raw); err != nil {
			return nil, fmt.Errorf("compress: gzip: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("compress: gzip: %w", err)
		}
	}
	return io.NopCloser(&buf), nil
}

func (s *Storage) decompress(body io.ReadCloser) (io.ReadCloser, error) {
	if body == nil {
		return nil, nil
	}
	defer body.Close()
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("compress: reading body: %w", err)
	}
	if len(raw) == 0 {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}

	switch s.algo {
	case Brotli:
		out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(raw)))
		if err != nil {
			return nil, fmt.Errorf("compress: brotli: %w", err)
		}
		return io.NopCloser(bytes.NewReader(out)), nil
	case Snappy:
		out, err := snappy.Decode(nil, raw)
		if err != nil {
			return nil, fmt.Errorf("compress: snappy: %w", err)
		}
		return io.NopCloser(bytes.NewReader(out)), nil
	default:
		r, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("compress: gzip: %w", err)
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("compress: gzip: %w", err)
		}
		return io.NopCloser(bytes.NewReader(out)), nil
	}
}

func (s *Storage) CreatePair(ctx context.Context, cacheKey string, req hishel.Request) (hishel.IncompletePair, error) {
	body, err := s.compress(req.Body)
	if err != nil {
		return hishel.IncompletePair{}, err
	}
	req.Body = body
	pair, err := s.inner.CreatePair(ctx, cacheKey, req)
	if err != nil {
		return hishel.IncompletePair{}, err
	}
	if pair.Request.Body, err = s.decompress(pair.Request.Body); err != nil {
		return hishel.IncompletePair{}, err
	}
	return pair, nil
}

func (s *Storage) AddResponse(ctx context.Context, id uuid.UUID, resp hishel.Response) (hishel.CompletePair, error) {
	body, err := s.compress(resp.Body)
	if err != nil {
		return hishel.CompletePair{}, err
	}
	resp.Body = body
	pair, err := s.inner.AddResponse(ctx, id, resp)
	if err != nil {
		return hishel.CompletePair{}, err
	}
	return s.decompressPair(pair)
}

func (s *Storage) GetPairs(ctx context.Context, cacheKey string) ([]hishel.CompletePair, error) {
	pairs, err := s.inner.GetPairs(ctx, cacheKey)
	if err != nil {
		return nil, err
	}
	out := make([]hishel.CompletePair, 0, len(pairs))
	for _, p := range pairs {
		decoded, err := s.decompressPair(p)
		if err != nil {
			continue
		}
		out = append(out, decoded)
	}
	return out, nil
}

func (s *Storage) UpdatePair(ctx context.Context, id uuid.UUID, fn func(hishel.CompletePair) (hishel.CompletePair, error)) (hishel.CompletePair, error) {
	pair, err := s.inner.UpdatePair(ctx, id, func(current hishel.CompletePair) (hishel.CompletePair, error) {
		decoded, err := s.decompressPair(current)
		if err != nil {
			return hishel.CompletePair{}, err
		}
		updated, err := fn(decoded)
		if err != nil {
			return hishel.CompletePair{}, err
		}
		reqBody, err := s.compress(updated.Request.Body)
		if err != nil {
			return hishel.CompletePair{}, err
		}
		updated.Request.Body = reqBody
		body, err := s.compress(updated.Response.Body)
		if err != nil {
			return hishel.CompletePair{}, err
		}
		updated.Response.Body = body
		return updated, nil
	})
	if err != nil {
		return hishel.CompletePair{}, err
	}
	return s.decompressPair(pair)
}

func (s *Storage) Remove(ctx context.Context, id uuid.UUID) error { return s.inner.Remove(ctx, id) }
func (s *Storage) Cleanup(ctx context.Context) error              { return s.inner.Cleanup(ctx) }
func (s *Storage) Close() error                                   { return s.inner.Close() }

func (s *Storage) decompressPair(p hishel.CompletePair) (hishel.CompletePair, error) {
	var err error
	if p.Request.Body, err = s.decompress(p.Request.Body); err != nil {
		return hishel.CompletePair{}, err
	}
	if p.Response.Body, err = s.decompress(p.Response.Body); err != nil {
		return hishel.CompletePair{}, err
	}
	return p, nil
}

var _ hishel.Storage = (*Storage)(nil)
