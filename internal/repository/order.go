package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/pricing"
)

const orderColumns = `id, order_number, user_id, status, subtotal, tax_amount, shipping_amount,
	discount_amount, total_amount, billing_address, shipping_address, payment_method,
	shipping_method, promo_code, shipped_date, delivered_date, created_at, updated_at`

const (
	createOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	createOrderItemSQL = `INSERT INTO order_items
		(order_id, position, product_id, variant_id, quantity, unit_price, total_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id`

	listOrderItemsSQL = `SELECT order_id, product_id, variant_id, quantity, unit_price, total_price
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, position`

	saveOrderStatusSQL = `UPDATE orders
		SET status = $2, shipped_date = $3, delivered_date = $4, updated_at = $5
		WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order and its lines in one batch. Addresses are
// serialized to JSON for the JSONB columns.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	billing, err := json.Marshal(o.BillingAddress)
	if err != nil {
		return errors.Wrap(err, "marshaling billing address")
	}
	shipping, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return errors.Wrap(err, "marshaling shipping address")
	}

	batch := &pgx.Batch{}
	batch.Queue(createOrderSQL,
		o.ID, o.Number, o.UserID, string(o.Status), o.Subtotal, o.Tax, o.Shipping,
		o.Discount, o.Total, billing, shipping, string(o.PaymentMethod),
		string(o.ShippingMethod), o.PromoCode, o.ShippedDate, o.DeliveredDate, o.CreatedAt, o.UpdatedAt,
	)
	for i, l := range o.Lines {
		batch.Queue(createOrderItemSQL,
			o.ID, i, l.ProductID, l.VariantID, l.Quantity, l.UnitPrice, l.TotalPrice,
		)
	}

	if err := conn(ctx, r.pool).SendBatch(ctx, batch).Close(); err != nil {
		return apperr.Store(err, fmt.Sprintf("create order %s", o.Number))
	}
	return nil
}

// Get returns an order with its lines. Inside a transaction the order row is
// locked FOR UPDATE.
func (r *OrderRepository) Get(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	q := conn(ctx, r.pool)
	rows, err := q.Query(ctx, lockInTx(ctx, getOrderSQL), id)
	if err != nil {
		return nil, apperr.Store(err, "get order")
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, apperr.Store(err, "get order")
	}

	orders := []order.Order{o}
	if err := r.attachLines(ctx, q, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// ListByUser returns the user's orders with their lines, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]order.Order, error) {
	q := conn(ctx, r.pool)
	rows, err := q.Query(ctx, listOrdersSQL, userID)
	if err != nil {
		return nil, apperr.Store(err, "list orders")
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, apperr.Store(err, "list orders")
	}
	if err := r.attachLines(ctx, q, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// SaveStatus writes the status fields of an existing order.
func (r *OrderRepository) SaveStatus(ctx context.Context, o *order.Order) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, saveOrderStatusSQL,
		o.ID, string(o.Status), o.ShippedDate, o.DeliveredDate, o.UpdatedAt,
	)
	if err != nil {
		return apperr.Store(err, "save order status")
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) attachLines(ctx context.Context, q querier, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(orders))
	index := make(map[uuid.UUID]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	rows, err := q.Query(ctx, listOrderItemsSQL, ids)
	if err != nil {
		return apperr.Store(err, "list order items")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID uuid.UUID
			l       order.Line
		)
		if err := rows.Scan(&orderID, &l.ProductID, &l.VariantID, &l.Quantity, &l.UnitPrice, &l.TotalPrice); err != nil {
			return apperr.Store(err, "scan order item")
		}
		i := index[orderID]
		orders[i].Lines = append(orders[i].Lines, l)
	}
	if err := rows.Err(); err != nil {
		return apperr.Store(err, "list order items")
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o                 order.Order
		status, payment   string
		shippingMethod    string
		billing, shipping []byte
		shipped           *time.Time
		delivered         *time.Time
	)
	err := row.Scan(
		&o.ID, &o.Number, &o.UserID, &status, &o.Subtotal, &o.Tax, &o.Shipping,
		&o.Discount, &o.Total, &billing, &shipping, &payment,
		&shippingMethod, &o.PromoCode, &shipped, &delivered, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}
	if err := json.Unmarshal(billing, &o.BillingAddress); err != nil {
		return o, errors.Wrap(err, "unmarshaling billing address")
	}
	if err := json.Unmarshal(shipping, &o.ShippingAddress); err != nil {
		return o, errors.Wrap(err, "unmarshaling shipping address")
	}
	o.Status = order.Status(status)
	o.PaymentMethod = order.PaymentMethod(payment)
	o.ShippingMethod = pricing.ShippingMethod(shippingMethod)
	o.ShippedDate = shipped
	o.DeliveredDate = delivered
	return o, nil
}
