package product

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
)

var (
	// ErrNotFound is returned when a product does not exist or is inactive.
	ErrNotFound = apperr.New(apperr.NotFound, "product not found or inactive")
	// ErrVariantNotFound is returned when a variant does not exist, is
	// inactive, or belongs to a different product.
	ErrVariantNotFound = apperr.New(apperr.NotFound, "product variant not found or inactive")
)

// Product represents a catalog item available for purchase.
type Product struct {
	ID            uuid.UUID
	SKU           string
	Name          string
	Description   string
	CategoryID    uuid.NullUUID
	Price         decimal.Decimal
	StockQuantity int
	IsActive      bool
	IsFeatured    bool
	Tags          []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Variant is a purchasable variation of a product. When a cart line
// references a variant, its price and stock replace the parent's.
type Variant struct {
	ID            uuid.UUID
	ProductID     uuid.UUID
	SKU           string
	Name          string
	Price         decimal.Decimal
	StockQuantity int
	IsActive      bool
}

// Offer is the current price and available stock for an item reference.
type Offer struct {
	ProductID      uuid.UUID
	VariantID      uuid.NullUUID
	UnitPrice      decimal.Decimal
	AvailableStock int
}

// Repository defines read operations for the product catalog.
//
// GetActive and GetActiveVariant lock the returned row for the remainder of
// the surrounding transaction, if any, so that stock checks made under it do
// not race with concurrent cart mutations.
type Repository interface {
	GetActive(ctx context.Context, id uuid.UUID) (*Product, error)
	GetActiveVariant(ctx context.Context, id uuid.UUID) (*Variant, error)
	Featured(ctx context.Context, limit int) ([]Product, error)
	Search(ctx context.Context, params SearchParams) ([]Product, error)
	LowStock(ctx context.Context, threshold int) ([]Product, error)
}

// Resolve returns the offer for a product and optional variant.
func Resolve(ctx context.Context, repo Repository, productID uuid.UUID, variantID uuid.NullUUID) (Offer, error) {
	p, err := repo.GetActive(ctx, productID)
	if err != nil {
		return Offer{}, err
	}

	offer := Offer{
		ProductID:      p.ID,
		UnitPrice:      p.Price,
		AvailableStock: p.StockQuantity,
	}
	if !variantID.Valid {
		return offer, nil
	}

	v, err := repo.GetActiveVariant(ctx, variantID.UUID)
	if err != nil {
		return Offer{}, err
	}
	if v.ProductID != p.ID {
		return Offer{}, ErrVariantNotFound
	}

	offer.VariantID = variantID
	offer.UnitPrice = v.Price
	offer.AvailableStock = v.StockQuantity
	return offer, nil
}
