package product

import (
	"context"
	"math"
	"testing"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/apperr"
)

// --- Mock implementations ---

type mockRepo struct {
	products map[uuid.UUID]*Product
	variants map[uuid.UUID]*Variant

	featuredCalls int
	lastSearch    SearchParams
	lastThreshold int
	err           error
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		products: make(map[uuid.UUID]*Product),
		variants: make(map[uuid.UUID]*Variant),
	}
}

func (m *mockRepo) GetActive(_ context.Context, id uuid.UUID) (*Product, error) {
	p, ok := m.products[id]
	if !ok || !p.IsActive {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *mockRepo) GetActiveVariant(_ context.Context, id uuid.UUID) (*Variant, error) {
	v, ok := m.variants[id]
	if !ok || !v.IsActive {
		return nil, ErrVariantNotFound
	}
	return v, nil
}

func (m *mockRepo) Featured(_ context.Context, limit int) ([]Product, error) {
	m.featuredCalls++
	if m.err != nil {
		return nil, m.err
	}
	return make([]Product, limit), nil
}

func (m *mockRepo) Search(_ context.Context, params SearchParams) ([]Product, error) {
	m.lastSearch = params
	return nil, m.err
}

func (m *mockRepo) LowStock(_ context.Context, threshold int) ([]Product, error) {
	m.lastThreshold = threshold
	return nil, m.err
}

type mockCache struct {
	stored map[int][]Product
}

func (c *mockCache) Featured(_ context.Context, limit int) ([]Product, bool) {
	p, ok := c.stored[limit]
	return p, ok
}

func (c *mockCache) StoreFeatured(_ context.Context, limit int, products []Product) {
	c.stored[limit] = products
}

// --- Tests ---

func TestResolve(t *testing.T) {
	repo := newMockRepo()
	p := &Product{ID: uuid.New(), Price: decimal.RequireFromString("25.00"), StockQuantity: 10, IsActive: true}
	other := &Product{ID: uuid.New(), Price: decimal.RequireFromString("1.00"), StockQuantity: 1, IsActive: true}
	v := &Variant{ID: uuid.New(), ProductID: p.ID, Price: decimal.RequireFromString("30.00"), StockQuantity: 2, IsActive: true}
	foreign := &Variant{ID: uuid.New(), ProductID: other.ID, Price: decimal.RequireFromString("2.00"), StockQuantity: 5, IsActive: true}
	inactive := &Product{ID: uuid.New(), Price: decimal.RequireFromString("3.00"), StockQuantity: 5}
	repo.products[p.ID] = p
	repo.products[other.ID] = other
	repo.products[inactive.ID] = inactive
	repo.variants[v.ID] = v
	repo.variants[foreign.ID] = foreign

	ctx := context.Background()

	t.Run("product only", func(t *testing.T) {
		offer, err := Resolve(ctx, repo, p.ID, uuid.NullUUID{})
		require.NoError(t, err)
		assert.True(t, p.Price.Equal(offer.UnitPrice))
		assert.Equal(t, 10, offer.AvailableStock)
		assert.False(t, offer.VariantID.Valid)
	})

	t.Run("variant overrides price and stock", func(t *testing.T) {
		offer, err := Resolve(ctx, repo, p.ID, uuid.NullUUID{UUID: v.ID, Valid: true})
		require.NoError(t, err)
		assert.True(t, v.Price.Equal(offer.UnitPrice))
		assert.Equal(t, 2, offer.AvailableStock)
		assert.Equal(t, v.ID, offer.VariantID.UUID)
	})

	t.Run("inactive product", func(t *testing.T) {
		_, err := Resolve(ctx, repo, inactive.ID, uuid.NullUUID{})
		require.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
	})

	t.Run("unknown variant", func(t *testing.T) {
		_, err := Resolve(ctx, repo, p.ID, uuid.NullUUID{UUID: uuid.New(), Valid: true})
		require.ErrorIs(t, err, ErrVariantNotFound)
	})

	t.Run("variant of another product", func(t *testing.T) {
		_, err := Resolve(ctx, repo, p.ID, uuid.NullUUID{UUID: foreign.ID, Valid: true})
		require.ErrorIs(t, err, ErrVariantNotFound)
	})
}

func TestSearchParams_Normalize(t *testing.T) {
	tests := []struct {
		name      string
		in        SearchParams
		wantSort  SortKey
		wantPage  int
		wantLimit int
	}{
		{name: "defaults", in: SearchParams{}, wantSort: SortName, wantPage: 1, wantLimit: DefaultSearchLimit},
		{name: "keeps valid", in: SearchParams{SortBy: SortPrice, Page: 3, Limit: 50}, wantSort: SortPrice, wantPage: 3, wantLimit: 50},
		{name: "clamps limit", in: SearchParams{Limit: 1000}, wantSort: SortName, wantPage: 1, wantLimit: MaxSearchLimit},
		{name: "clamps page", in: SearchParams{Page: math.MaxInt / 10, Limit: MaxSearchLimit}, wantSort: SortName, wantPage: MaxSearchPage, wantLimit: MaxSearchLimit},
		{name: "rejects unknown sort", in: SearchParams{SortBy: "price; DROP TABLE products"}, wantSort: SortName, wantPage: 1, wantLimit: DefaultSearchLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize()
			assert.Equal(t, tt.wantSort, got.SortBy)
			assert.Equal(t, tt.wantPage, got.Page)
			assert.Equal(t, tt.wantLimit, got.Limit)
		})
	}

	assert.Equal(t, 40, SearchParams{Page: 3, Limit: 20}.Offset())

	huge := SearchParams{Page: math.MaxInt / 10, Limit: MaxSearchLimit}.Normalize()
	assert.Positive(t, huge.Offset())
}

func TestService_FeaturedUsesCache(t *testing.T) {
	repo := newMockRepo()
	cache := &mockCache{stored: make(map[int][]Product)}
	svc := NewService(repo, cache)
	ctx := context.Background()

	first, err := svc.Featured(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, first, DefaultFeaturedLimit)

	second, err := svc.Featured(ctx, DefaultFeaturedLimit)
	require.NoError(t, err)
	assert.Len(t, second, DefaultFeaturedLimit)
	assert.Equal(t, 1, repo.featuredCalls)
}

func TestService_FeaturedWithoutCache(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)

	_, err := svc.Featured(context.Background(), 500)
	require.NoError(t, err)
	_, err = svc.Featured(context.Background(), 500)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.featuredCalls)
}

func TestService_FeaturedError(t *testing.T) {
	repo := newMockRepo()
	repo.err = errors.New("connection refused")
	cache := &mockCache{stored: make(map[int][]Product)}
	svc := NewService(repo, cache)

	_, err := svc.Featured(context.Background(), 5)
	require.Error(t, err)
	assert.Empty(t, cache.stored)
}

func TestService_SearchNormalizes(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)

	_, err := svc.Search(context.Background(), SearchParams{Query: "mug", Limit: 999})
	require.NoError(t, err)
	assert.Equal(t, "mug", repo.lastSearch.Query)
	assert.Equal(t, MaxSearchLimit, repo.lastSearch.Limit)
	assert.Equal(t, 1, repo.lastSearch.Page)
}

func TestService_LowStockDefault(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)

	_, err := svc.LowStock(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultLowStock, repo.lastThreshold)

	_, err = svc.LowStock(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 3, repo.lastThreshold)
}
