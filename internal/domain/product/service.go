package product

import (
	"context"

	"github.com/go-faster/errors"
)

// FeaturedCache stores featured product lists keyed by limit. Lookups that
// miss or fail report ok=false; the service then reads the repository.
type FeaturedCache interface {
	Featured(ctx context.Context, limit int) (products []Product, ok bool)
	StoreFeatured(ctx context.Context, limit int, products []Product)
}

// Service answers catalog queries for the storefront.
type Service struct {
	repo  Repository
	cache FeaturedCache
}

// NewService creates a product Service. cache may be nil.
func NewService(repo Repository, cache FeaturedCache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Featured returns up to limit active featured products, newest first.
func (s *Service) Featured(ctx context.Context, limit int) ([]Product, error) {
	if limit < 1 {
		limit = DefaultFeaturedLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	if s.cache != nil {
		if products, ok := s.cache.Featured(ctx, limit); ok {
			return products, nil
		}
	}

	products, err := s.repo.Featured(ctx, limit)
	if err != nil {
		return nil, errors.Wrap(err, "featured products")
	}

	if s.cache != nil {
		s.cache.StoreFeatured(ctx, limit, products)
	}
	return products, nil
}

// Search returns a page of active products matching params.
func (s *Service) Search(ctx context.Context, params SearchParams) ([]Product, error) {
	products, err := s.repo.Search(ctx, params.Normalize())
	if err != nil {
		return nil, errors.Wrap(err, "search products")
	}
	return products, nil
}

// LowStock returns active products with fewer than threshold units in stock,
// lowest stock first.
func (s *Service) LowStock(ctx context.Context, threshold int) ([]Product, error) {
	if threshold < 1 {
		threshold = DefaultLowStock
	}
	products, err := s.repo.LowStock(ctx, threshold)
	if err != nil {
		return nil, errors.Wrap(err, "low stock products")
	}
	return products, nil
}
