package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/cart"
)

const cartItemColumns = `id, user_id, product_id, variant_id, quantity, unit_price, total_price, created_at, updated_at`

const (
	findCartItemSQL = `SELECT ` + cartItemColumns + `
		FROM cart_items
		WHERE user_id = $1 AND product_id = $2 AND variant_id IS NOT DISTINCT FROM $3`

	getCartItemSQL = `SELECT ` + cartItemColumns + `
		FROM cart_items WHERE id = $1 AND user_id = $2`

	listCartItemsSQL = `SELECT ` + cartItemColumns + `
		FROM cart_items WHERE user_id = $1 ORDER BY created_at, id`

	insertCartItemSQL = `INSERT INTO cart_items (` + cartItemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	updateCartItemSQL = `UPDATE cart_items
		SET quantity = $2, total_price = $3, updated_at = $4
		WHERE id = $1`

	deleteCartItemsSQL = `DELETE FROM cart_items WHERE user_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Find returns the line for (userID, productID, variantID). A null variant
// matches only lines without a variant.
func (r *CartRepository) Find(ctx context.Context, userID, productID uuid.UUID, variantID uuid.NullUUID) (*cart.Item, error) {
	return r.one(ctx, "find cart item", lockInTx(ctx, findCartItemSQL), userID, productID, variantID)
}

// Get returns a line owned by userID.
func (r *CartRepository) Get(ctx context.Context, userID, id uuid.UUID) (*cart.Item, error) {
	return r.one(ctx, "get cart item", lockInTx(ctx, getCartItemSQL), id, userID)
}

func (r *CartRepository) one(ctx context.Context, op, query string, args ...any) (*cart.Item, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Store(err, op)
	}
	item, err := pgx.CollectExactlyOneRow(rows, scanCartItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrItemNotFound
		}
		return nil, apperr.Store(err, op)
	}
	return &item, nil
}

// ListByUser returns the user's lines, oldest first.
func (r *CartRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]cart.Item, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, listCartItemsSQL, userID)
	if err != nil {
		return nil, apperr.Store(err, "list cart items")
	}
	items, err := pgx.CollectRows(rows, scanCartItem)
	if err != nil {
		return nil, apperr.Store(err, "list cart items")
	}
	return items, nil
}

// Insert adds a new line.
func (r *CartRepository) Insert(ctx context.Context, it *cart.Item) error {
	_, err := conn(ctx, r.pool).Exec(ctx, insertCartItemSQL,
		it.ID, it.UserID, it.ProductID, it.VariantID, it.Quantity,
		it.UnitPrice, it.TotalPrice, it.CreatedAt, it.UpdatedAt,
	)
	if err != nil {
		return apperr.Store(err, "insert cart item")
	}
	return nil
}

// Update writes the quantity and total of an existing line.
func (r *CartRepository) Update(ctx context.Context, it *cart.Item) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, updateCartItemSQL,
		it.ID, it.Quantity, it.TotalPrice, it.UpdatedAt,
	)
	if err != nil {
		return apperr.Store(err, "update cart item")
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrItemNotFound
	}
	return nil
}

// DeleteByUser removes every line owned by userID.
func (r *CartRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	if _, err := conn(ctx, r.pool).Exec(ctx, deleteCartItemsSQL, userID); err != nil {
		return apperr.Store(err, "clear cart")
	}
	return nil
}

func scanCartItem(row pgx.CollectableRow) (cart.Item, error) {
	var it cart.Item
	err := row.Scan(
		&it.ID, &it.UserID, &it.ProductID, &it.VariantID, &it.Quantity,
		&it.UnitPrice, &it.TotalPrice, &it.CreatedAt, &it.UpdatedAt,
	)
	return it, err
}
