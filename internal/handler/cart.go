package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
)

// ListCart returns the caller's cart lines together with the estimate.
func (h *Handler) ListCart(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserID(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := h.carts.Items(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := cartResponse{
		Items:   make([]cartItemResponse, len(items)),
		Summary: toCartSummary(cart.Summarize(items)),
	}
	for i, it := range items {
		resp.Items[i] = toCartItem(it)
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// AddToCart adds a product or variant to the caller's cart.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserID(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req addCartItemRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	add := cart.AddRequest{
		ProductID: uuid.MustParse(req.ProductID),
		Quantity:  req.Quantity,
	}
	if req.VariantID != "" {
		add.VariantID = uuid.NullUUID{UUID: uuid.MustParse(req.VariantID), Valid: true}
	}

	item, err := h.carts.AddToCart(r.Context(), userID, add)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toCartItem(*item))
}

// UpdateQuantity replaces the quantity of one of the caller's cart lines.
func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserID(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	itemID, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateQuantityRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	item, err := h.carts.UpdateQuantity(r.Context(), userID, itemID, req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toCartItem(*item))
}

// ClearCart removes every line from the caller's cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserID(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.carts.Clear(r.Context(), userID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, successResponse{Success: true})
}

// CartSummary returns the caller's cart estimate with standard shipping.
func (h *Handler) CartSummary(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserID(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := h.carts.Summary(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toCartSummary(summary))
}
