package order

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/pricing"
)

var (
	ErrNotFound          = apperr.New(apperr.NotFound, "order not found")
	ErrCannotCancel      = apperr.New(apperr.InvalidStateTransition, "order cannot be cancelled")
	ErrInvalidTransition = apperr.New(apperr.InvalidStateTransition, "order status transition not allowed")
	ErrInvalidPayment    = apperr.New(apperr.InvalidArgument, "invalid payment method")
	ErrInvalidShipping   = apperr.New(apperr.InvalidArgument, "invalid shipping method")
)

// PaymentMethod names how the customer pays.
type PaymentMethod string

const (
	PaymentCreditCard PaymentMethod = "credit_card"
	PaymentDebitCard  PaymentMethod = "debit_card"
	PaymentPayPal     PaymentMethod = "paypal"
)

// Valid reports whether m is an accepted payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCreditCard, PaymentDebitCard, PaymentPayPal:
		return true
	}
	return false
}

// Address is a billing or shipping address snapshot.
type Address struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Street    string `json:"street"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zipCode"`
	Country   string `json:"country"`
	Phone     string `json:"phone,omitempty"`
}

// Line is a cart line captured at checkout.
type Line struct {
	ProductID  uuid.UUID
	VariantID  uuid.NullUUID
	Quantity   int
	UnitPrice  decimal.Decimal
	TotalPrice decimal.Decimal
}

// Order is a placed order. Amounts are fixed at creation; only the status
// and its date stamps change afterwards.
type Order struct {
	ID              uuid.UUID
	Number          string
	UserID          uuid.UUID
	Status          Status
	Subtotal        decimal.Decimal
	Tax             decimal.Decimal
	Shipping        decimal.Decimal
	Discount        decimal.Decimal
	Total           decimal.Decimal
	BillingAddress  Address
	ShippingAddress Address
	PaymentMethod   PaymentMethod
	ShippingMethod  pricing.ShippingMethod
	PromoCode       string
	Lines           []Line
	ShippedDate     *time.Time
	DeliveredDate   *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Repository persists orders and their lines.
type Repository interface {
	// Create inserts the order and its lines.
	Create(ctx context.Context, o *Order) error
	// Get returns the order with its lines, or ErrNotFound. Inside a
	// transaction the order row stays locked until commit.
	Get(ctx context.Context, id uuid.UUID) (*Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Order, error)
	// SaveStatus writes Status, ShippedDate, DeliveredDate and UpdatedAt.
	SaveStatus(ctx context.Context, o *Order) error
}

// EventType names an order event.
type EventType string

const (
	EventCreated       EventType = "order.created"
	EventStatusChanged EventType = "order.status_changed"
)

// Event is published after an order change commits.
type Event struct {
	Type       EventType
	OrderID    uuid.UUID
	Number     string
	UserID     uuid.UUID
	Status     Status
	PrevStatus Status
	Total      decimal.Decimal
	OccurredAt time.Time
}

// Publisher delivers order events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Transactor runs fn inside a single serializable transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
