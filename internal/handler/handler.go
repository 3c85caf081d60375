// Package handler exposes the storefront domain over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
)

// Catalog is the product service as the handlers use it.
type Catalog interface {
	Featured(ctx context.Context, limit int) ([]product.Product, error)
	Search(ctx context.Context, params product.SearchParams) ([]product.Product, error)
	LowStock(ctx context.Context, threshold int) ([]product.Product, error)
}

// Carts is the cart service as the handlers use it.
type Carts interface {
	AddToCart(ctx context.Context, userID uuid.UUID, req cart.AddRequest) (*cart.Item, error)
	UpdateQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*cart.Item, error)
	Clear(ctx context.Context, userID uuid.UUID) error
	Items(ctx context.Context, userID uuid.UUID) ([]cart.Item, error)
	Summary(ctx context.Context, userID uuid.UUID) (*cart.Summary, error)
}

// Orders is the order service as the handlers use it.
type Orders interface {
	Create(ctx context.Context, userID uuid.UUID, req order.CreateRequest) (*order.Order, error)
	Cancel(ctx context.Context, userID, orderID uuid.UUID) (*order.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, rawStatus string) (*order.Order, error)
	Get(ctx context.Context, userID, orderID uuid.UUID) (*order.Order, error)
	List(ctx context.Context, userID uuid.UUID) ([]order.Order, error)
}

// Users is the account service as the handlers use it.
type Users interface {
	Active(ctx context.Context, id uuid.UUID) (*user.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, upd user.ProfileUpdate) (*user.User, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

var (
	_ Catalog = (*product.Service)(nil)
	_ Carts   = (*cart.Service)(nil)
	_ Orders  = (*order.Service)(nil)
	_ Users   = (*user.Service)(nil)
)

// Handler serves the storefront JSON API.
type Handler struct {
	catalog Catalog
	carts   Carts
	orders  Orders
	users   Users
	sec     *SecurityHandler
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	catalog Catalog,
	carts Carts,
	orders Orders,
	users Users,
	sec *SecurityHandler,
) *Handler {
	return &Handler{
		catalog: catalog,
		carts:   carts,
		orders:  orders,
		users:   users,
		sec:     sec,
	}
}

// Routes registers every API route on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	customer := h.sec.Customer
	admin := h.sec.Admin

	mux.HandleFunc("GET /api/products/featured", h.FeaturedProducts)
	mux.HandleFunc("GET /api/products/search", h.SearchProducts)

	mux.Handle("GET /api/users/me", customer(h.GetProfile))
	mux.Handle("PATCH /api/users/me", customer(h.UpdateProfile))
	mux.Handle("POST /api/users/me/deactivate", customer(h.DeactivateAccount))

	mux.Handle("GET /api/cart", customer(h.ListCart))
	mux.Handle("DELETE /api/cart", customer(h.ClearCart))
	mux.Handle("GET /api/cart/summary", customer(h.CartSummary))
	mux.Handle("POST /api/cart/items", customer(h.AddToCart))
	mux.Handle("PATCH /api/cart/items/{id}", customer(h.UpdateQuantity))

	mux.Handle("POST /api/orders", customer(h.CreateOrder))
	mux.Handle("GET /api/orders", customer(h.ListOrders))
	mux.Handle("GET /api/orders/{id}", customer(h.GetOrder))
	mux.Handle("POST /api/orders/{id}/cancel", customer(h.CancelOrder))

	mux.Handle("PATCH /api/admin/orders/{id}/status", admin(h.UpdateOrderStatus))
	mux.Handle("GET /api/admin/products/low-stock", admin(h.LowStockProducts))

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, errRouteNotFound)
	})
}
