// Package multistore composes several hishel.Storage backends into a single
// tiered Storage: reads check tiers in order and backfill faster tiers on a
// hit from a slower one. Writes land on the primary (first) tier only, since
// a pair's id is assigned by whichever backend creates it and ids are not
// portable across tiers; other tiers receive only what backfill copies into
// them, and nothing is copied to them at write time.
package multistore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hishelgo/hishel"
)

// Storage fans a single Storage call out across multiple tiers, ordered
// fastest-first (e.g. an in-process memstore in front of a shared redisstore).
type Storage struct {
	tiers []hishel.Storage
}

// New builds a tiered Storage. tiers must be given fastest-first; at least
// one tier is required.
func New(tiers ...hishel.Storage) (*Storage, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("multistore: at least one tier is required")
	}
	return &Storage{tiers: tiers}, nil
}

// CreatePair reserves the pair on the primary tier only. Other tiers never
// receive it through this Storage: backfill copies only pairs found in a
// slower tier into the tiers in front of it.
func (s *Storage) CreatePair(ctx context.Context, cacheKey string, req hishel.Request) (hishel.IncompletePair, error) {
	return s.tiers[0].CreatePair(ctx, cacheKey, req)
}

// AddResponse completes the pair on the primary tier only; see CreatePair.
func (s *Storage) AddResponse(ctx context.Context, id uuid.UUID, resp hishel.Response) (hishel.CompletePair, error) {
	return s.tiers[0].AddResponse(ctx, id, resp)
}

// GetPairs queries tiers in order and returns the first non-empty result,
// backfilling every faster tier with what the hit tier returned.
func (s *Storage) GetPairs(ctx context.Context, cacheKey string) ([]hishel.CompletePair, error) {
	for i, tier := range s.tiers {
		pairs, err := tier.GetPairs(ctx, cacheKey)
		if err != nil {
			continue
		}
		if len(pairs) == 0 {
			continue
		}
		if i > 0 {
			s.backfill(ctx, i, cacheKey, pairs)
		}
		return pairs, nil
	}
	return nil, nil
}

// backfill recreates pairs discovered in a slower tier into every faster
// tier, so the next lookup for cacheKey is served from the front of the
// chain.
func (s *Storage) backfill(ctx context.Context, foundAt int, cacheKey string, pairs []hishel.CompletePair) {
	for _, tier := range s.tiers[:foundAt] {
		for _, p := range pairs {
			incomplete, err := tier.CreatePair(ctx, cacheKey, p.Request)
			if err != nil {
				hishel.GetLogger().Warn("multistore: backfill create failed", "error", err)
				continue
			}
			if _, err := tier.AddResponse(ctx, incomplete.ID, p.Response); err != nil {
				hishel.GetLogger().Warn("multistore: backfill add response failed", "error", err)
			}
		}
	}
}

// UpdatePair applies fn through the primary tier only; see CreatePair. A
// faster tier's backfilled copy of the pre-update pair is left in place
// until it naturally expires or is itself backfilled again after the
// primary tier is evicted, since backfilled copies carry their own ids and
// can't be reached by id here.
func (s *Storage) UpdatePair(ctx context.Context, id uuid.UUID, fn func(hishel.CompletePair) (hishel.CompletePair, error)) (hishel.CompletePair, error) {
	return s.tiers[0].UpdatePair(ctx, id, fn)
}

// Remove removes the pair from the primary tier. Faster-tier backfilled
// copies are not reachable by this id; see UpdatePair.
func (s *Storage) Remove(ctx context.Context, id uuid.UUID) error {
	return s.tiers[0].Remove(ctx, id)
}

// Cleanup runs Cleanup on every tier, returning the first error encountered,
// if any, after attempting all tiers.
func (s *Storage) Cleanup(ctx context.Context) error {
	var firstErr error
	for _, tier := range s.tiers {
		if err := tier.Cleanup(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close closes every tier, returning the first error encountered, if any,
// after attempting all tiers.
func (s *Storage) Close() error {
	var firstErr error
	for _, tier := range s.tiers {
		if err := tier.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ hishel.Storage = (*Storage)(nil)
