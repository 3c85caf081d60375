package handler

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
)

// money renders a decimal as a JSON number with two fraction digits.
type money decimal.Decimal

func (m money) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(m).StringFixed(2)), nil
}

// --- Requests ---

type updateProfileRequest struct {
	FirstName *string `json:"firstName" validate:"omitempty,min=2,max=50"`
	LastName  *string `json:"lastName" validate:"omitempty,min=2,max=50"`
	Phone     *string `json:"phone" validate:"omitempty,max=20,phone"`
}

type addCartItemRequest struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	VariantID string `json:"variantId" validate:"omitempty,uuid"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=999"`
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1,max=999"`
}

type addressRequest struct {
	FirstName string `json:"firstName" validate:"required,max=50"`
	LastName  string `json:"lastName" validate:"required,max=50"`
	Street    string `json:"street" validate:"required,max=255"`
	City      string `json:"city" validate:"required,max=100"`
	State     string `json:"state" validate:"required,max=100"`
	ZipCode   string `json:"zipCode" validate:"required,max=20"`
	Country   string `json:"country" validate:"required,max=100"`
	Phone     string `json:"phone" validate:"omitempty,max=20,phone"`
}

func (a addressRequest) domain() order.Address {
	return order.Address(a)
}

type createOrderRequest struct {
	BillingAddress  addressRequest `json:"billingAddress" validate:"required"`
	ShippingAddress addressRequest `json:"shippingAddress" validate:"required"`
	PaymentMethod   string         `json:"paymentMethod" validate:"required,oneof=credit_card debit_card paypal"`
	ShippingMethod  string         `json:"shippingMethod" validate:"required,oneof=standard express overnight"`
	PromoCode       string         `json:"promoCode" validate:"omitempty,max=50"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// --- Responses ---

type successResponse struct {
	Success bool `json:"success"`
}

type productResponse struct {
	ID            uuid.UUID  `json:"id"`
	SKU           string     `json:"sku"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	CategoryID    *uuid.UUID `json:"categoryId,omitempty"`
	Price         money      `json:"price"`
	StockQuantity int        `json:"stockQuantity"`
	IsFeatured    bool       `json:"isFeatured"`
	Tags          []string   `json:"tags"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func toProducts(ps []product.Product) []productResponse {
	out := make([]productResponse, len(ps))
	for i, p := range ps {
		tags := p.Tags
		if tags == nil {
			tags = []string{}
		}
		out[i] = productResponse{
			ID:            p.ID,
			SKU:           p.SKU,
			Name:          p.Name,
			Description:   p.Description,
			CategoryID:    nullUUID(p.CategoryID),
			Price:         money(p.Price),
			StockQuantity: p.StockQuantity,
			IsFeatured:    p.IsFeatured,
			Tags:          tags,
			CreatedAt:     p.CreatedAt,
			UpdatedAt:     p.UpdatedAt,
		}
	}
	return out
}

type cartItemResponse struct {
	ID         uuid.UUID  `json:"id"`
	ProductID  uuid.UUID  `json:"productId"`
	VariantID  *uuid.UUID `json:"variantId,omitempty"`
	Quantity   int        `json:"quantity"`
	UnitPrice  money      `json:"unitPrice"`
	TotalPrice money      `json:"totalPrice"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

func toCartItem(it cart.Item) cartItemResponse {
	return cartItemResponse{
		ID:         it.ID,
		ProductID:  it.ProductID,
		VariantID:  nullUUID(it.VariantID),
		Quantity:   it.Quantity,
		UnitPrice:  money(it.UnitPrice),
		TotalPrice: money(it.TotalPrice),
		CreatedAt:  it.CreatedAt,
		UpdatedAt:  it.UpdatedAt,
	}
}

type cartResponse struct {
	Items   []cartItemResponse  `json:"items"`
	Summary cartSummaryResponse `json:"summary"`
}

type cartSummaryResponse struct {
	ItemCount      int   `json:"itemCount"`
	Subtotal       money `json:"subtotal"`
	EstimatedTax   money `json:"estimatedTax"`
	Shipping       money `json:"shipping"`
	EstimatedTotal money `json:"estimatedTotal"`
}

func toCartSummary(s *cart.Summary) cartSummaryResponse {
	return cartSummaryResponse{
		ItemCount:      s.ItemCount,
		Subtotal:       money(s.Subtotal),
		EstimatedTax:   money(s.EstimatedTax),
		Shipping:       money(s.Shipping),
		EstimatedTotal: money(s.EstimatedTotal),
	}
}

type orderLineResponse struct {
	ProductID  uuid.UUID  `json:"productId"`
	VariantID  *uuid.UUID `json:"variantId,omitempty"`
	Quantity   int        `json:"quantity"`
	UnitPrice  money      `json:"unitPrice"`
	TotalPrice money      `json:"totalPrice"`
}

type orderResponse struct {
	ID              uuid.UUID           `json:"id"`
	OrderNumber     string              `json:"orderNumber"`
	Status          order.Status        `json:"status"`
	Subtotal        money               `json:"subtotal"`
	TaxAmount       money               `json:"taxAmount"`
	ShippingAmount  money               `json:"shippingAmount"`
	DiscountAmount  money               `json:"discountAmount"`
	TotalAmount     money               `json:"totalAmount"`
	BillingAddress  order.Address       `json:"billingAddress"`
	ShippingAddress order.Address       `json:"shippingAddress"`
	PaymentMethod   order.PaymentMethod `json:"paymentMethod"`
	ShippingMethod  string              `json:"shippingMethod"`
	PromoCode       string              `json:"promoCode,omitempty"`
	Items           []orderLineResponse `json:"items"`
	ShippedDate     *time.Time          `json:"shippedDate,omitempty"`
	DeliveredDate   *time.Time          `json:"deliveredDate,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

func toOrder(o *order.Order) orderResponse {
	lines := make([]orderLineResponse, len(o.Lines))
	for i, l := range o.Lines {
		lines[i] = orderLineResponse{
			ProductID:  l.ProductID,
			VariantID:  nullUUID(l.VariantID),
			Quantity:   l.Quantity,
			UnitPrice:  money(l.UnitPrice),
			TotalPrice: money(l.TotalPrice),
		}
	}
	return orderResponse{
		ID:              o.ID,
		OrderNumber:     o.Number,
		Status:          o.Status,
		Subtotal:        money(o.Subtotal),
		TaxAmount:       money(o.Tax),
		ShippingAmount:  money(o.Shipping),
		DiscountAmount:  money(o.Discount),
		TotalAmount:     money(o.Total),
		BillingAddress:  o.BillingAddress,
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   o.PaymentMethod,
		ShippingMethod:  string(o.ShippingMethod),
		PromoCode:       o.PromoCode,
		Items:           lines,
		ShippedDate:     o.ShippedDate,
		DeliveredDate:   o.DeliveredDate,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

type userResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Phone     string    `json:"phone,omitempty"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toUser(u *user.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Phone:     u.Phone,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func nullUUID(id uuid.NullUUID) *uuid.UUID {
	if !id.Valid {
		return nil
	}
	return &id.UUID
}
