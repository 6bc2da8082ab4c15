package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-loja/internal/repo"
)

// Reader exposes the product lookups the cart and checkout flows need.
type Reader interface {
	SummariesByIDs(ctx context.Context, ids []uuid.UUID) ([]repo.ProductSummary, error)
	GetSummary(ctx context.Context, id uuid.UUID) (repo.ProductSummary, error)
}

// Service reads product summaries through a Redis JSON cache. It is the only
// catalog surface; listing, search, and detail pages are served elsewhere.
type Service struct {
	Reader Reader
	Cache  *Cache
}

func summaryKey(id uuid.UUID) string {
	return fmt.Sprintf("catalog:summary:%s", id)
}

// Summary returns the display summary for a single product, from cache when
// warm. Cache write failures are ignored; a cold cache only costs a query.
func (s *Service) Summary(ctx context.Context, id uuid.UUID) (repo.ProductSummary, error) {
	var p repo.ProductSummary
	if hit, err := s.Cache.GetJSON(ctx, summaryKey(id), &p); err == nil && hit {
		return p, nil
	}
	p, err := s.Reader.GetSummary(ctx, id)
	if err != nil {
		return repo.ProductSummary{}, err
	}
	_ = s.Cache.SetJSON(ctx, summaryKey(id), p)
	return p, nil
}

// SummariesByIDs resolves summaries for a batch of product ids, serving what
// it can from cache and fetching the remainder in one query. Products that
// no longer exist or were deactivated are absent from the result.
func (s *Service) SummariesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]repo.ProductSummary, error) {
	out := make(map[uuid.UUID]repo.ProductSummary, len(ids))
	var misses []uuid.UUID
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		var p repo.ProductSummary
		if hit, err := s.Cache.GetJSON(ctx, summaryKey(id), &p); err == nil && hit {
			out[p.ID] = p
			continue
		}
		misses = append(misses, id)
	}
	if len(misses) == 0 {
		return out, nil
	}
	fetched, err := s.Reader.SummariesByIDs(ctx, misses)
	if err != nil {
		return nil, err
	}
	for _, p := range fetched {
		out[p.ID] = p
		_ = s.Cache.SetJSON(ctx, summaryKey(p.ID), p)
	}
	return out, nil
}
