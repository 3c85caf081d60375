// Package pricing computes checkout totals. Everything here is a pure
// function of its inputs.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
)

// ShippingMethod names a delivery option accepted at checkout.
type ShippingMethod string

const (
	ShippingStandard  ShippingMethod = "standard"
	ShippingExpress   ShippingMethod = "express"
	ShippingOvernight ShippingMethod = "overnight"
)

// Valid reports whether m is one of the accepted shipping methods.
func (m ShippingMethod) Valid() bool {
	switch m {
	case ShippingStandard, ShippingExpress, ShippingOvernight:
		return true
	}
	return false
}

var (
	// TaxRate is the flat sales tax applied to the subtotal.
	TaxRate = decimal.RequireFromString("0.08")
	// StandardShipping is charged for every method except express.
	StandardShipping = decimal.RequireFromString("5.00")
	// ExpressShipping is charged for ShippingExpress.
	ExpressShipping = decimal.RequireFromString("15.00")
)

// ErrEmptyCart is returned when pricing is requested for no lines.
var ErrEmptyCart = apperr.New(apperr.EmptyCart, "cart is empty")

// Quote is the priced breakdown of a set of lines.
type Quote struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// Calculate prices line totals for the given shipping method. Overnight is
// accepted but priced as standard; only express has its own rate.
func Calculate(lineTotals []decimal.Decimal, method ShippingMethod) (Quote, error) {
	if len(lineTotals) == 0 {
		return Quote{}, ErrEmptyCart
	}
	return quote(Subtotal(lineTotals), Shipping(method)), nil
}

// Estimate prices line totals with standard shipping. Unlike Calculate it
// accepts an empty set, which yields a zero subtotal plus shipping.
func Estimate(lineTotals []decimal.Decimal) Quote {
	return quote(Subtotal(lineTotals), StandardShipping)
}

func quote(subtotal, shipping decimal.Decimal) Quote {
	tax := Tax(subtotal)
	discount := decimal.Zero
	return Quote{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Discount: discount,
		Total:    subtotal.Add(tax).Add(shipping).Sub(discount),
	}
}

// Subtotal sums line totals.
func Subtotal(lineTotals []decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range lineTotals {
		sum = sum.Add(t)
	}
	return sum
}

// Tax returns the tax owed on subtotal, rounded to cents.
func Tax(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(TaxRate).Round(2)
}

// Shipping returns the flat shipping charge for m.
func Shipping(m ShippingMethod) decimal.Decimal {
	if m == ShippingExpress {
		return ExpressShipping
	}
	return StandardShipping
}

// LineTotal returns unitPrice × quantity.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}
