package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/pricing"
)

var (
	ErrItemNotFound    = apperr.New(apperr.NotFound, "cart item not found")
	ErrInvalidQuantity = apperr.New(apperr.InvalidArgument, "quantity must be greater than 0")
	// ErrInsufficientStock is returned when a new line asks for more than is
	// in stock.
	ErrInsufficientStock = apperr.New(apperr.InsufficientStock, "insufficient stock available")
	// ErrInsufficientStockMerged is returned when the merged or updated
	// quantity of an existing line exceeds stock.
	ErrInsufficientStockMerged = apperr.New(apperr.InsufficientStock, "insufficient stock for requested quantity")
)

// Item is a single cart line owned by one user. TotalPrice always equals
// UnitPrice × Quantity.
type Item struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	ProductID  uuid.UUID
	VariantID  uuid.NullUUID
	Quantity   int
	UnitPrice  decimal.Decimal
	TotalPrice decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (i *Item) setQuantity(q int) {
	i.Quantity = q
	i.TotalPrice = pricing.LineTotal(i.UnitPrice, q)
}

// Summary is the estimated cost of a cart before a shipping method is chosen.
type Summary struct {
	ItemCount      int
	Subtotal       decimal.Decimal
	EstimatedTax   decimal.Decimal
	Shipping       decimal.Decimal
	EstimatedTotal decimal.Decimal
}

// Repository persists cart lines.
type Repository interface {
	// Find returns the line for the merge key, or ErrItemNotFound.
	Find(ctx context.Context, userID, productID uuid.UUID, variantID uuid.NullUUID) (*Item, error)
	// Get returns the line with id owned by userID, or ErrItemNotFound.
	Get(ctx context.Context, userID, id uuid.UUID) (*Item, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Item, error)
	Insert(ctx context.Context, item *Item) error
	Update(ctx context.Context, item *Item) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
}

// Transactor runs fn inside a single serializable transaction. Repositories
// called with the ctx passed to fn take part in that transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
