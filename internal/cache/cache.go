package cache

import (
	"context"
	"time"

	"mexiquense/facturacion/internal/domain"
)

// SearchCache holds partial-code search results. Invalidate drops every
// cached result at once, which the catalog does after each import.
type SearchCache interface {
	Get(ctx context.Context, fragment string) ([]domain.Product, bool, error)
	Set(ctx context.Context, fragment string, products []domain.Product, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

type NoopSearchCache struct{}

func (NoopSearchCache) Get(_ context.Context, _ string) ([]domain.Product, bool, error) {
	return nil, false, nil
}

func (NoopSearchCache) Set(_ context.Context, _ string, _ []domain.Product, _ time.Duration) error {
	return nil
}

func (NoopSearchCache) Invalidate(_ context.Context) error {
	return nil
}
