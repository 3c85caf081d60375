package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/product"
)

const (
	upsertCategorySQL = `INSERT INTO categories (id, name) VALUES ($1, $2)
ON CONFLICT (name) DO NOTHING`

	upsertProductSQL = `INSERT INTO products
    (id, sku, name, description, category_id, price, stock_quantity, is_active, is_featured, tags)
VALUES ($1, $2, $3, $4, (SELECT id FROM categories WHERE name = NULLIF($5, '')), $6, $7, $8, $9, $10)
ON CONFLICT (sku) DO UPDATE SET
    name = EXCLUDED.name,
    description = EXCLUDED.description,
    category_id = EXCLUDED.category_id,
    price = EXCLUDED.price,
    stock_quantity = EXCLUDED.stock_quantity,
    is_active = EXCLUDED.is_active,
    is_featured = EXCLUDED.is_featured,
    tags = EXCLUDED.tags,
    updated_at = now()`

	upsertVariantSQL = `INSERT INTO product_variants
    (id, product_id, sku, name, price, stock_quantity, is_active)
VALUES ($1, (SELECT id FROM products WHERE sku = $2), $3, $4, $5, $6, $7)
ON CONFLICT (sku) DO UPDATE SET
    product_id = EXCLUDED.product_id,
    name = EXCLUDED.name,
    price = EXCLUDED.price,
    stock_quantity = EXCLUDED.stock_quantity,
    is_active = EXCLUDED.is_active`
)

var _ product.CatalogWriter = (*CatalogRepository)(nil)

// CatalogRepository writes catalog feeds.
type CatalogRepository struct {
	pool *pgxpool.Pool
	tx   *TxManager
}

// NewCatalogRepository creates a CatalogRepository. Each Upsert call runs in
// its own transaction.
func NewCatalogRepository(pool *pgxpool.Pool, tx *TxManager) *CatalogRepository {
	return &CatalogRepository{pool: pool, tx: tx}
}

// Upsert inserts or updates records and their variants in one batch.
func (r *CatalogRepository) Upsert(ctx context.Context, records []product.ImportRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := buildCatalogBatch(records)

	return r.tx.InTx(ctx, func(ctx context.Context) error {
		br := conn(ctx, r.pool).SendBatch(ctx, batch)
		for range batch.Len() {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return apperr.Store(err, "upsert catalog")
			}
		}
		if err := br.Close(); err != nil {
			return apperr.Store(errors.Wrap(err, "close batch"), "upsert catalog")
		}
		return nil
	})
}

func buildCatalogBatch(records []product.ImportRecord) *pgx.Batch {
	batch := &pgx.Batch{}
	categories := make(map[string]struct{})
	for _, rec := range records {
		if rec.Category == "" {
			continue
		}
		if _, ok := categories[rec.Category]; ok {
			continue
		}
		categories[rec.Category] = struct{}{}
		batch.Queue(upsertCategorySQL, uuid.New(), rec.Category)
	}

	for _, rec := range records {
		tags := rec.Tags
		if tags == nil {
			tags = []string{}
		}
		batch.Queue(upsertProductSQL,
			uuid.New(), rec.SKU, rec.Name, rec.Description, rec.Category,
			rec.Price, rec.StockQuantity, rec.IsActive, rec.IsFeatured, tags,
		)
		for _, v := range rec.Variants {
			batch.Queue(upsertVariantSQL,
				uuid.New(), rec.SKU, v.SKU, v.Name, v.Price, v.StockQuantity, v.IsActive,
			)
		}
	}
	return batch
}
