package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/pricing"
)

// CartStore is the part of the cart repository checkout needs.
type CartStore interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]cart.Item, error)
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
}

// CreateRequest holds the checkout input.
type CreateRequest struct {
	BillingAddress  Address
	ShippingAddress Address
	PaymentMethod   PaymentMethod
	ShippingMethod  pricing.ShippingMethod
	// PromoCode is stored with the order but never discounts it.
	PromoCode string
}

// Options configures optional Service behavior.
type Options struct {
	// StrictAdminTransitions rejects admin status changes that are not
	// lifecycle edges. Otherwise they are applied and logged as overrides.
	StrictAdminTransitions bool
	Publisher              Publisher
	MeterProvider          metric.MeterProvider
	TracerProvider         trace.TracerProvider
	Now                    func() time.Time
}

// Service encapsulates the order lifecycle.
type Service struct {
	tx     Transactor
	carts  CartStore
	orders Repository

	strict    bool
	publisher Publisher
	now       func() time.Time

	tracer        trace.Tracer
	created       metric.Int64Counter
	statusChanges metric.Int64Counter
}

// NewService creates an order Service.
func NewService(tx Transactor, carts CartStore, orders Repository, opts Options) (*Service, error) {
	if opts.MeterProvider == nil {
		opts.MeterProvider = metricnoop.NewMeterProvider()
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = tracenoop.NewTracerProvider()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	meter := opts.MeterProvider.Meter("storefront/order")
	created, err := meter.Int64Counter("storefront.orders.created",
		metric.WithDescription("Number of orders placed"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "orders created counter")
	}
	statusChanges, err := meter.Int64Counter("storefront.orders.status_changes",
		metric.WithDescription("Number of order status changes"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "status changes counter")
	}

	return &Service{
		tx:            tx,
		carts:         carts,
		orders:        orders,
		strict:        opts.StrictAdminTransitions,
		publisher:     opts.Publisher,
		now:           opts.Now,
		tracer:        opts.TracerProvider.Tracer("storefront/order"),
		created:       created,
		statusChanges: statusChanges,
	}, nil
}

// Create places a pending order from the user's cart and empties the cart.
// Pricing, the order insert and the cart clear share one transaction.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, req CreateRequest) (_ *Order, rerr error) {
	if !req.PaymentMethod.Valid() {
		return nil, ErrInvalidPayment
	}
	if !req.ShippingMethod.Valid() {
		return nil, ErrInvalidShipping
	}

	ctx, span := s.tracer.Start(ctx, "order.Create",
		trace.WithAttributes(attribute.String("shipping_method", string(req.ShippingMethod))),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	var o *Order
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		items, err := s.carts.ListByUser(ctx, userID)
		if err != nil {
			return errors.Wrap(err, "list cart items")
		}

		quote, err := pricing.Calculate(cart.LineTotals(items), req.ShippingMethod)
		if err != nil {
			return err
		}

		now := s.now()
		number, err := NewNumber(now)
		if err != nil {
			return errors.Wrap(err, "generate order number")
		}

		lines := make([]Line, len(items))
		for i, it := range items {
			lines[i] = Line{
				ProductID:  it.ProductID,
				VariantID:  it.VariantID,
				Quantity:   it.Quantity,
				UnitPrice:  it.UnitPrice,
				TotalPrice: it.TotalPrice,
			}
		}

		o = &Order{
			ID:              uuid.New(),
			Number:          number,
			UserID:          userID,
			Status:          StatusPending,
			Subtotal:        quote.Subtotal,
			Tax:             quote.Tax,
			Shipping:        quote.Shipping,
			Discount:        quote.Discount,
			Total:           quote.Total,
			BillingAddress:  req.BillingAddress,
			ShippingAddress: req.ShippingAddress,
			PaymentMethod:   req.PaymentMethod,
			ShippingMethod:  req.ShippingMethod,
			PromoCode:       req.PromoCode,
			Lines:           lines,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.orders.Create(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}
		if err := s.carts.DeleteByUser(ctx, userID); err != nil {
			return errors.Wrap(err, "clear cart")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.created.Add(ctx, 1, metric.WithAttributes(
		attribute.String("shipping_method", string(o.ShippingMethod)),
		attribute.String("payment_method", string(o.PaymentMethod)),
	))
	zctx.From(ctx).Info("Order created",
		zap.String("order_number", o.Number),
		zap.Stringer("order_id", o.ID),
		zap.String("total", o.Total.StringFixed(2)),
	)
	s.publish(ctx, Event{
		Type:       EventCreated,
		OrderID:    o.ID,
		Number:     o.Number,
		UserID:     o.UserID,
		Status:     o.Status,
		Total:      o.Total,
		OccurredAt: o.CreatedAt,
	})
	return o, nil
}

// Cancel cancels one of the user's orders. Only pending and confirmed
// orders can be cancelled.
func (s *Service) Cancel(ctx context.Context, userID, orderID uuid.UUID) (*Order, error) {
	var (
		o    *Order
		prev Status
	)
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.orders.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if o.UserID != userID {
			return ErrNotFound
		}
		if !o.Status.Cancellable() {
			return ErrCannotCancel
		}

		prev = o.Status
		o.Status = StatusCancelled
		o.UpdatedAt = s.now()
		if err := s.orders.SaveStatus(ctx, o); err != nil {
			return errors.Wrap(err, "save order status")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.statusChanged(ctx, o, prev, "customer")
	return o, nil
}

// UpdateStatus sets an order's status on behalf of an operator. Entering
// shipped or delivered stamps the matching date every time.
func (s *Service) UpdateStatus(ctx context.Context, orderID uuid.UUID, rawStatus string) (*Order, error) {
	next, err := ParseStatus(rawStatus)
	if err != nil {
		return nil, err
	}

	var (
		o        *Order
		prev     Status
		override bool
	)
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.orders.Get(ctx, orderID)
		if err != nil {
			return err
		}

		prev = o.Status
		override = !CanTransition(prev, next)
		if override && s.strict {
			return ErrInvalidTransition
		}

		now := s.now()
		o.Status = next
		o.UpdatedAt = now
		switch next {
		case StatusShipped:
			o.ShippedDate = &now
		case StatusDelivered:
			o.DeliveredDate = &now
		}
		if err := s.orders.SaveStatus(ctx, o); err != nil {
			return errors.Wrap(err, "save order status")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if override {
		zctx.From(ctx).Warn("Admin status override",
			zap.Stringer("order_id", o.ID),
			zap.String("from", string(prev)),
			zap.String("to", string(next)),
		)
	}
	s.statusChanged(ctx, o, prev, "admin")
	return o, nil
}

// Get returns one of the user's orders. Orders of other users are reported
// as not found.
func (s *Service) Get(ctx context.Context, userID, orderID uuid.UUID) (*Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrNotFound
	}
	return o, nil
}

// List returns the user's orders, newest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

func (s *Service) statusChanged(ctx context.Context, o *Order, prev Status, actor string) {
	s.statusChanges.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", string(prev)),
		attribute.String("to", string(o.Status)),
		attribute.String("actor", actor),
	))
	zctx.From(ctx).Info("Order status changed",
		zap.Stringer("order_id", o.ID),
		zap.String("from", string(prev)),
		zap.String("to", string(o.Status)),
		zap.String("actor", actor),
	)
	s.publish(ctx, Event{
		Type:       EventStatusChanged,
		OrderID:    o.ID,
		Number:     o.Number,
		UserID:     o.UserID,
		Status:     o.Status,
		PrevStatus: prev,
		Total:      o.Total,
		OccurredAt: o.UpdatedAt,
	})
}

// publish delivers e after commit. Failures are logged only: the order
// change is already durable.
func (s *Service) publish(ctx context.Context, e Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		zctx.From(ctx).Error("Publish order event",
			zap.String("type", string(e.Type)),
			zap.Stringer("order_id", e.OrderID),
			zap.Error(err),
		)
	}
}
