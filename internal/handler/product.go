package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

// FeaturedProducts returns active featured products, newest first.
func (h *Handler) FeaturedProducts(w http.ResponseWriter, r *http.Request) {
	limit, _, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	products, err := h.catalog.Featured(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toProducts(products))
}

// SearchProducts filters, sorts and pages active products.
func (h *Handler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	params, err := searchParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	products, err := h.catalog.Search(r.Context(), params)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toProducts(products))
}

// LowStockProducts lists active products at or below the stock threshold.
func (h *Handler) LowStockProducts(w http.ResponseWriter, r *http.Request) {
	threshold, _, err := queryInt(r, "threshold")
	if err != nil {
		writeError(w, r, err)
		return
	}
	products, err := h.catalog.LowStock(r.Context(), threshold)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toProducts(products))
}

func searchParams(r *http.Request) (product.SearchParams, error) {
	q := r.URL.Query()
	p := product.SearchParams{
		Query:  strings.TrimSpace(q.Get("query")),
		SortBy: product.SortKey(q.Get("sortBy")),
	}
	var bad []fieldError

	if raw := q.Get("categoryId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			bad = append(bad, fieldError{Field: "categoryId", Message: "must be a UUID"})
		} else {
			p.CategoryID = uuid.NullUUID{UUID: id, Valid: true}
		}
	}
	for _, f := range []struct {
		name string
		dst  *decimal.NullDecimal
	}{
		{"minPrice", &p.MinPrice},
		{"maxPrice", &p.MaxPrice},
	} {
		raw := q.Get(f.name)
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil || d.IsNegative() {
			bad = append(bad, fieldError{Field: f.name, Message: "must be a non-negative number"})
			continue
		}
		*f.dst = decimal.NewNullDecimal(d)
	}
	if p.SortBy != "" && !p.SortBy.Valid() {
		bad = append(bad, fieldError{Field: "sortBy", Message: "must be one of: name, price, createdAt, stockQuantity"})
	}
	switch strings.ToLower(q.Get("sortOrder")) {
	case "", "asc":
	case "desc":
		p.Descending = true
	default:
		bad = append(bad, fieldError{Field: "sortOrder", Message: "must be one of: asc, desc"})
	}

	var err error
	if p.Page, _, err = queryInt(r, "page"); err != nil {
		return p, err
	}
	if p.Page > product.MaxSearchPage {
		bad = append(bad, fieldError{Field: "page", Message: "must be at most " + strconv.Itoa(product.MaxSearchPage)})
	}
	if p.Limit, _, err = queryInt(r, "limit"); err != nil {
		return p, err
	}
	if len(bad) > 0 {
		return p, invalid("invalid search parameters", bad...)
	}
	return p, nil
}
