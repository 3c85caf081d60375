package product

import (
	"context"

	"github.com/shopspring/decimal"
)

// ImportRecord is one product of a catalog feed. SKU identifies the product
// across imports; Category is resolved by name and created when missing.
type ImportRecord struct {
	SKU           string
	Name          string
	Description   string
	Category      string
	Price         decimal.Decimal
	StockQuantity int
	IsActive      bool
	IsFeatured    bool
	Tags          []string
	Variants      []VariantRecord
}

// VariantRecord is a variant of an ImportRecord, keyed by its own SKU.
type VariantRecord struct {
	SKU           string
	Name          string
	Price         decimal.Decimal
	StockQuantity int
	IsActive      bool
}

// CatalogWriter upserts imported products and their variants by SKU.
type CatalogWriter interface {
	Upsert(ctx context.Context, records []ImportRecord) error
}
