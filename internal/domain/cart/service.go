package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/pricing"
	"github.com/xenking/storefront/internal/domain/product"
)

// AddRequest holds the input for adding a product to a cart.
type AddRequest struct {
	ProductID uuid.UUID
	VariantID uuid.NullUUID
	Quantity  int
}

// Service implements cart mutations and queries. Every read-modify-write
// sequence runs inside one transaction.
type Service struct {
	tx       Transactor
	products product.Repository
	items    Repository
	now      func() time.Time
}

// NewService creates a cart Service.
func NewService(tx Transactor, products product.Repository, items Repository) *Service {
	return &Service{
		tx:       tx,
		products: products,
		items:    items,
		now:      time.Now,
	}
}

// AddToCart adds quantity units of a product (or variant) to the user's
// cart. A repeat add for the same product and variant merges into the
// existing line and keeps its unit price.
func (s *Service) AddToCart(ctx context.Context, userID uuid.UUID, req AddRequest) (*Item, error) {
	if req.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	var result *Item
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		offer, err := product.Resolve(ctx, s.products, req.ProductID, req.VariantID)
		if err != nil {
			return err
		}
		if offer.AvailableStock < req.Quantity {
			return ErrInsufficientStock
		}

		now := s.now()
		existing, err := s.items.Find(ctx, userID, req.ProductID, req.VariantID)
		switch {
		case err == nil:
			merged := existing.Quantity + req.Quantity
			if offer.AvailableStock < merged {
				return ErrInsufficientStockMerged
			}
			existing.setQuantity(merged)
			existing.UpdatedAt = now
			if err := s.items.Update(ctx, existing); err != nil {
				return errors.Wrap(err, "update cart item")
			}
			result = existing
			return nil
		case errors.Is(err, ErrItemNotFound):
		default:
			return errors.Wrap(err, "find cart item")
		}

		item := &Item{
			ID:        uuid.New(),
			UserID:    userID,
			ProductID: req.ProductID,
			VariantID: req.VariantID,
			UnitPrice: offer.UnitPrice,
			CreatedAt: now,
			UpdatedAt: now,
		}
		item.setQuantity(req.Quantity)
		if err := s.items.Insert(ctx, item); err != nil {
			return errors.Wrap(err, "insert cart item")
		}
		result = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateQuantity sets the quantity of one of the user's cart lines. The
// stored unit price is kept; stock is checked against the current offer.
func (s *Service) UpdateQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*Item, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	var result *Item
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		item, err := s.items.Get(ctx, userID, itemID)
		if err != nil {
			return err
		}

		offer, err := product.Resolve(ctx, s.products, item.ProductID, item.VariantID)
		if err != nil {
			return err
		}
		if offer.AvailableStock < quantity {
			return ErrInsufficientStockMerged
		}

		item.setQuantity(quantity)
		item.UpdatedAt = s.now()
		if err := s.items.Update(ctx, item); err != nil {
			return errors.Wrap(err, "update cart item")
		}
		result = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Clear removes every line from the user's cart. Clearing an empty cart is
// not an error.
func (s *Service) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := s.items.DeleteByUser(ctx, userID); err != nil {
		return errors.Wrap(err, "clear cart")
	}
	return nil
}

// Items returns the user's cart lines, oldest first.
func (s *Service) Items(ctx context.Context, userID uuid.UUID) ([]Item, error) {
	items, err := s.items.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list cart items")
	}
	return items, nil
}

// Summary estimates the cart total with standard shipping.
func (s *Service) Summary(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	items, err := s.Items(ctx, userID)
	if err != nil {
		return nil, err
	}
	return Summarize(items), nil
}

// Summarize computes a Summary from cart lines.
func Summarize(items []Item) *Summary {
	count := 0
	for _, it := range items {
		count += it.Quantity
	}
	q := pricing.Estimate(LineTotals(items))
	return &Summary{
		ItemCount:      count,
		Subtotal:       q.Subtotal,
		EstimatedTax:   q.Tax,
		Shipping:       q.Shipping,
		EstimatedTotal: q.Total,
	}
}

// LineTotals returns the TotalPrice of each item in order.
func LineTotals(items []Item) []decimal.Decimal {
	out := make([]decimal.Decimal, len(items))
	for i, it := range items {
		out[i] = it.TotalPrice
	}
	return out
}
