package repository

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/xenking/storefront/internal/domain/product"
)

func TestBuildSearchQuery_Defaults(t *testing.T) {
	query, args := buildSearchQuery(product.SearchParams{}.Normalize())

	assert.Contains(t, query, "WHERE is_active ORDER BY name ASC, id ASC LIMIT $1 OFFSET $2")
	assert.Equal(t, []any{product.DefaultSearchLimit, 0}, args)
}

func TestBuildSearchQuery_AllFilters(t *testing.T) {
	cat := uuid.New()
	params := product.SearchParams{
		Query:      "mug",
		CategoryID: uuid.NullUUID{UUID: cat, Valid: true},
		MinPrice:   decimal.NewNullDecimal(decimal.RequireFromString("5")),
		MaxPrice:   decimal.NewNullDecimal(decimal.RequireFromString("50")),
		SortBy:     product.SortPrice,
		Descending: true,
		Page:       3,
		Limit:      10,
	}.Normalize()

	query, args := buildSearchQuery(params)

	assert.Contains(t, query, "name ILIKE $1 OR description ILIKE $1 OR array_to_string(tags, ' ') ILIKE $1")
	assert.Contains(t, query, "category_id = $2")
	assert.Contains(t, query, "price >= $3")
	assert.Contains(t, query, "price <= $4")
	assert.Contains(t, query, "ORDER BY price DESC, id ASC LIMIT $5 OFFSET $6")
	assert.Equal(t, []any{
		"%mug%",
		cat,
		decimal.RequireFromString("5"),
		decimal.RequireFromString("50"),
		10,
		20,
	}, args)
}

func TestBuildSearchQuery_InjectionStaysInArgs(t *testing.T) {
	params := product.SearchParams{
		Query:  "'; DROP TABLE products; --",
		SortBy: "name; DELETE FROM users",
	}.Normalize()

	query, args := buildSearchQuery(params)

	assert.NotContains(t, query, "DROP")
	assert.NotContains(t, query, "DELETE")
	assert.Contains(t, query, "ORDER BY name ASC")
	assert.Equal(t, "%'; DROP TABLE products; --%", args[0])
}

func TestBuildSearchQuery_EscapesLikeWildcards(t *testing.T) {
	_, args := buildSearchQuery(product.SearchParams{Query: `50%_off\`}.Normalize())
	assert.Equal(t, `%50\%\_off\\%`, args[0])
}

func TestBuildSearchQuery_SortColumns(t *testing.T) {
	for key, col := range sortColumns {
		query, _ := buildSearchQuery(product.SearchParams{SortBy: key}.Normalize())
		assert.True(t, strings.Contains(query, "ORDER BY "+col+" ASC"), "sort %s", key)
	}
}
