package product

import (
	"math"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SortKey names a column products may be ordered by.
type SortKey string

const (
	SortName          SortKey = "name"
	SortPrice         SortKey = "price"
	SortCreatedAt     SortKey = "createdAt"
	SortStockQuantity SortKey = "stockQuantity"
)

const (
	DefaultSearchLimit   = 20
	MaxSearchLimit       = 100
	DefaultFeaturedLimit = 10
	DefaultLowStock      = 10
)

// MaxSearchPage is the largest page whose offset fits in an int.
const MaxSearchPage = math.MaxInt / MaxSearchLimit

// Valid reports whether k is an allowed sort key.
func (k SortKey) Valid() bool {
	switch k {
	case SortName, SortPrice, SortCreatedAt, SortStockQuantity:
		return true
	}
	return false
}

// SearchParams filters and pages an active-product search. Zero values mean
// "no filter" except for paging, which Normalize fills in.
type SearchParams struct {
	Query      string
	CategoryID uuid.NullUUID
	MinPrice   decimal.NullDecimal
	MaxPrice   decimal.NullDecimal
	SortBy     SortKey
	Descending bool
	Page       int
	Limit      int
}

// Normalize clamps paging and replaces an unknown sort key with SortName.
func (p SearchParams) Normalize() SearchParams {
	if !p.SortBy.Valid() {
		p.SortBy = SortName
	}
	switch {
	case p.Page < 1:
		p.Page = 1
	case p.Page > MaxSearchPage:
		p.Page = MaxSearchPage
	}
	switch {
	case p.Limit < 1:
		p.Limit = DefaultSearchLimit
	case p.Limit > MaxSearchLimit:
		p.Limit = MaxSearchLimit
	}
	return p
}

// Offset returns the number of rows to skip for the current page.
func (p SearchParams) Offset() int {
	return (p.Page - 1) * p.Limit
}
