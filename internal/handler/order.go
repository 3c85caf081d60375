package handler

import (
	"net/http"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/pricing"
)

// CreateOrder checks out the caller's cart.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserID(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req createOrderRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.Create(r.Context(), userID, order.CreateRequest{
		BillingAddress:  req.BillingAddress.domain(),
		ShippingAddress: req.ShippingAddress.domain(),
		PaymentMethod:   order.PaymentMethod(req.PaymentMethod),
		ShippingMethod:  pricing.ShippingMethod(req.ShippingMethod),
		PromoCode:       req.PromoCode,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/orders/"+o.ID.String())
	writeJSON(w, r, http.StatusCreated, toOrder(o))
}

// ListOrders returns the caller's orders, newest first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserID(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	orders, err := h.orders.List(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := make([]orderResponse, len(orders))
	for i := range orders {
		resp[i] = toOrder(&orders[i])
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// GetOrder returns one of the caller's orders.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserID(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	orderID, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.orders.Get(r.Context(), userID, orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toOrder(o))
}

// CancelOrder cancels one of the caller's pending or confirmed orders.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserID(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	orderID, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.orders.Cancel(r.Context(), userID, orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toOrder(o))
}

// UpdateOrderStatus sets an order's status on behalf of an operator.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateStatusRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.orders.UpdateStatus(r.Context(), orderID, req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toOrder(o))
}
