package repository

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/product"
)

const productColumns = `id, sku, name, description, category_id, price, stock_quantity,
	is_active, is_featured, tags, created_at, updated_at`

const (
	getActiveProductSQL = `SELECT ` + productColumns + `
		FROM products WHERE id = $1 AND is_active`

	getActiveVariantSQL = `SELECT id, product_id, sku, name, price, stock_quantity, is_active
		FROM product_variants WHERE id = $1 AND is_active`

	featuredProductsSQL = `SELECT ` + productColumns + `
		FROM products WHERE is_active AND is_featured
		ORDER BY created_at DESC LIMIT $1`

	lowStockProductsSQL = `SELECT ` + productColumns + `
		FROM products WHERE is_active AND stock_quantity < $1
		ORDER BY stock_quantity ASC, name ASC`
)

// sortColumns maps allowed sort keys to SQL columns. Only values from this
// map are ever interpolated into a query.
var sortColumns = map[product.SortKey]string{
	product.SortName:          "name",
	product.SortPrice:         "price",
	product.SortCreatedAt:     "created_at",
	product.SortStockQuantity: "stock_quantity",
}

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// GetActive returns an active product. Inside a transaction the row is
// locked FOR UPDATE.
func (r *ProductRepository) GetActive(ctx context.Context, id uuid.UUID) (*product.Product, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, lockInTx(ctx, getActiveProductSQL), id)
	if err != nil {
		return nil, apperr.Store(err, "get product")
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, apperr.Store(err, "get product")
	}
	return &p, nil
}

// GetActiveVariant returns an active variant. Inside a transaction the row
// is locked FOR UPDATE.
func (r *ProductRepository) GetActiveVariant(ctx context.Context, id uuid.UUID) (*product.Variant, error) {
	var v product.Variant
	err := conn(ctx, r.pool).QueryRow(ctx, lockInTx(ctx, getActiveVariantSQL), id).Scan(
		&v.ID, &v.ProductID, &v.SKU, &v.Name, &v.Price, &v.StockQuantity, &v.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrVariantNotFound
		}
		return nil, apperr.Store(err, "get product variant")
	}
	return &v, nil
}

// Featured returns up to limit active featured products, newest first.
func (r *ProductRepository) Featured(ctx context.Context, limit int) ([]product.Product, error) {
	return r.list(ctx, "featured products", featuredProductsSQL, limit)
}

// LowStock returns active products with stock below threshold.
func (r *ProductRepository) LowStock(ctx context.Context, threshold int) ([]product.Product, error) {
	return r.list(ctx, "low stock products", lowStockProductsSQL, threshold)
}

// Search returns a page of active products matching params.
func (r *ProductRepository) Search(ctx context.Context, params product.SearchParams) ([]product.Product, error) {
	query, args := buildSearchQuery(params.Normalize())
	return r.list(ctx, "search products", query, args...)
}

func (r *ProductRepository) list(ctx context.Context, op, query string, args ...any) ([]product.Product, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Store(err, op)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, apperr.Store(err, op)
	}
	return products, nil
}

// buildSearchQuery assembles the search statement. User input only ever
// travels as positional arguments.
func buildSearchQuery(p product.SearchParams) (string, []any) {
	var (
		args  []any
		where = []string{"is_active"}
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if p.Query != "" {
		ph := arg("%" + escapeLike(p.Query) + "%")
		where = append(where, "(name ILIKE "+ph+
			" OR description ILIKE "+ph+
			" OR array_to_string(tags, ' ') ILIKE "+ph+")")
	}
	if p.CategoryID.Valid {
		where = append(where, "category_id = "+arg(p.CategoryID.UUID))
	}
	if p.MinPrice.Valid {
		where = append(where, "price >= "+arg(p.MinPrice.Decimal))
	}
	if p.MaxPrice.Valid {
		where = append(where, "price <= "+arg(p.MaxPrice.Decimal))
	}

	dir := "ASC"
	if p.Descending {
		dir = "DESC"
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(productColumns)
	b.WriteString(" FROM products WHERE ")
	b.WriteString(strings.Join(where, " AND "))
	b.WriteString(" ORDER BY ")
	b.WriteString(sortColumns[p.SortBy])
	b.WriteString(" ")
	b.WriteString(dir)
	b.WriteString(", id ASC LIMIT ")
	b.WriteString(arg(p.Limit))
	b.WriteString(" OFFSET ")
	b.WriteString(arg(p.Offset()))
	return b.String(), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// lockInTx appends FOR UPDATE when ctx carries a transaction.
func lockInTx(ctx context.Context, query string) string {
	if _, ok := txFrom(ctx); ok {
		return query + " FOR UPDATE"
	}
	return query
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.SKU, &p.Name, &p.Description, &p.CategoryID, &p.Price, &p.StockQuantity,
		&p.IsActive, &p.IsFeatured, &p.Tags, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}
