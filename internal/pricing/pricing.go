// Package pricing is the single source of truth for order money math:
// rental-day subtotals, coupon and manual discounts, and IVA. Every call
// site (order creation, duplication, cost summaries) must go through
// ComputeTotals instead of re-deriving the arithmetic.
package pricing

import (
	"math"

	"github.com/andesrent/rental-admin/internal/models"
)

// IVARate is the Chilean value-added tax rate.
const IVARate = 0.19

// Round2 rounds to 2 decimals. Applied after every arithmetic step, not only
// at the end, so results stay stable across call sites.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

type LineItem struct {
	UnitPrice float64
	Quantity  uint
}

type Totals struct {
	ProductsSubtotal   float64 `json:"products_subtotal"`
	CalculatedSubtotal float64 `json:"calculated_subtotal"`
	IVA                float64 `json:"iva"`
	Total              float64 `json:"total"`
}

// ProductsSubtotal is the sum of line totals scaled by the number of rental
// days (jornadas).
func ProductsSubtotal(items []LineItem, numDays int) float64 {
	if numDays < 1 {
		numDays = 1
	}
	var sum float64
	for _, it := range items {
		sum = Round2(sum + Round2(it.UnitPrice*float64(it.Quantity)))
	}
	return Round2(sum * float64(numDays))
}

// ComputeTotals composes the final order total. The step order is fixed:
// subtotal, then shipping and discounts, then IVA on the discounted amount.
func ComputeTotals(items []LineItem, numDays int, shippingCost, manualDiscount, couponDiscount float64, applyIVA bool) Totals {
	productsSubtotal := ProductsSubtotal(items, numDays)

	calculated := Round2(productsSubtotal + shippingCost - couponDiscount - manualDiscount)
	if calculated < 0 {
		calculated = 0
	}

	var iva float64
	if applyIVA {
		iva = Round2(calculated * IVARate)
	}

	return Totals{
		ProductsSubtotal:   productsSubtotal,
		CalculatedSubtotal: calculated,
		IVA:                iva,
		Total:              Round2(calculated + iva),
	}
}

// Matching describes the order lines a fixed_product coupon applies to. When
// the coupon carries no product restriction the whole cart matches.
type Matching struct {
	Units    int
	Subtotal float64
}

// ComputeDiscount maps a coupon's discount type to a monetary discount.
// fixed_product applies the amount once per matching unit, capped at the
// matching-lines subtotal. The result is capped at maximumAmount when set,
// then at the subtotal, and never goes negative.
func ComputeDiscount(discountType string, amount, subtotal, maximumAmount float64, matching Matching) float64 {
	var discount float64
	switch discountType {
	case models.CouponTypePercent:
		discount = Round2(subtotal * amount / 100)
	case models.CouponTypeFixedCart:
		discount = Round2(amount)
	case models.CouponTypeFixedProduct:
		discount = Round2(amount * float64(matching.Units))
		if discount > matching.Subtotal {
			discount = matching.Subtotal
		}
	default:
		return 0
	}

	if maximumAmount > 0 && discount > maximumAmount {
		discount = maximumAmount
	}
	if discount > subtotal {
		discount = subtotal
	}
	if discount < 0 {
		discount = 0
	}
	return Round2(discount)
}
