package pricing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/andesrent/rental-admin/internal/models"
)

func TestComputeTotalsRentalExample(t *testing.T) {
	items := []LineItem{{UnitPrice: 10000, Quantity: 3}}

	totals := ComputeTotals(items, 2, 5000, 0, 0, true)

	require.Equal(t, 60000.0, totals.ProductsSubtotal)
	require.Equal(t, 65000.0, totals.CalculatedSubtotal)
	require.Equal(t, 12350.0, totals.IVA)
	require.Equal(t, 77350.0, totals.Total)
}

func TestComputeTotalsWithoutIVA(t *testing.T) {
	items := []LineItem{{UnitPrice: 2500, Quantity: 2}}

	totals := ComputeTotals(items, 1, 0, 0, 0, false)

	require.Equal(t, 5000.0, totals.CalculatedSubtotal)
	require.Equal(t, 0.0, totals.IVA)
	require.Equal(t, 5000.0, totals.Total)
}

func TestComputeTotalsDiscountsBeforeIVA(t *testing.T) {
	items := []LineItem{{UnitPrice: 10000, Quantity: 3}}

	// SAVE10-style coupon: 10% of 65000-worth cart applied before tax.
	totals := ComputeTotals(items, 2, 5000, 0, 6500, true)

	require.Equal(t, 58500.0, totals.CalculatedSubtotal)
	require.Equal(t, Round2(58500*0.19), totals.IVA)
	require.Equal(t, Round2(58500*1.19), totals.Total)
}

func TestComputeTotalsManualAndCouponDiscount(t *testing.T) {
	items := []LineItem{{UnitPrice: 1000, Quantity: 10}}

	totals := ComputeTotals(items, 1, 2000, 1500, 500, true)

	require.Equal(t, 10000.0, totals.ProductsSubtotal)
	require.Equal(t, 10000.0+2000-500-1500, totals.CalculatedSubtotal)
}

func TestComputeTotalsNeverNegative(t *testing.T) {
	items := []LineItem{{UnitPrice: 100, Quantity: 1}}

	totals := ComputeTotals(items, 1, 0, 500, 500, true)

	require.Equal(t, 0.0, totals.CalculatedSubtotal)
	require.Equal(t, 0.0, totals.Total)
}

func TestComputeTotalsDefaultsToOneDay(t *testing.T) {
	items := []LineItem{{UnitPrice: 300, Quantity: 2}}

	require.Equal(t, 600.0, ComputeTotals(items, 0, 0, 0, 0, false).Total)
}

func TestIVARoundTrip(t *testing.T) {
	items := []LineItem{{UnitPrice: 10333.33, Quantity: 3}}

	totals := ComputeTotals(items, 2, 4990, 0, 1234.56, true)

	recovered := totals.Total / (1 + IVARate)
	require.InDelta(t, totals.CalculatedSubtotal, recovered, 0.01)
}

func TestComputeDiscountPercent(t *testing.T) {
	got := ComputeDiscount(models.CouponTypePercent, 10, 65000, 0, Matching{})
	require.Equal(t, 6500.0, got)
}

func TestComputeDiscountPercentLaw(t *testing.T) {
	cases := []struct {
		subtotal, amount, cap float64
	}{
		{0, 50, 0},
		{100, 0, 0},
		{100, 100, 0},
		{12345.67, 33, 0},
		{50000, 25, 8000},
		{50000, 25, 20000},
	}
	for _, tc := range cases {
		got := ComputeDiscount(models.CouponTypePercent, tc.amount, tc.subtotal, tc.cap, Matching{})

		want := Round2(tc.subtotal * tc.amount / 100)
		if tc.cap > 0 {
			want = math.Min(want, tc.cap)
		}
		want = math.Min(want, tc.subtotal)
		require.Equal(t, Round2(want), got, "subtotal=%v amount=%v cap=%v", tc.subtotal, tc.amount, tc.cap)
	}
}

func TestComputeDiscountFixedCartClampedToSubtotal(t *testing.T) {
	require.Equal(t, 3000.0, ComputeDiscount(models.CouponTypeFixedCart, 3000, 65000, 0, Matching{}))
	require.Equal(t, 500.0, ComputeDiscount(models.CouponTypeFixedCart, 3000, 500, 0, Matching{}))
}

func TestComputeDiscountFixedCartMaximumAmount(t *testing.T) {
	require.Equal(t, 2000.0, ComputeDiscount(models.CouponTypeFixedCart, 3000, 65000, 2000, Matching{}))
}

func TestComputeDiscountFixedProductPerUnit(t *testing.T) {
	// 3 matching units at 500 each, cart subtotal 10000.
	got := ComputeDiscount(models.CouponTypeFixedProduct, 500, 10000, 0, Matching{Units: 3, Subtotal: 4500})
	require.Equal(t, 1500.0, got)
}

func TestComputeDiscountFixedProductCappedAtMatchingLines(t *testing.T) {
	got := ComputeDiscount(models.CouponTypeFixedProduct, 2000, 10000, 0, Matching{Units: 3, Subtotal: 4500})
	require.Equal(t, 4500.0, got)
}

func TestComputeDiscountUnknownType(t *testing.T) {
	require.Equal(t, 0.0, ComputeDiscount("gift_card", 1000, 5000, 0, Matching{}))
}

func TestRound2(t *testing.T) {
	require.Equal(t, 0.1, Round2(0.1))
	require.Equal(t, 2.35, Round2(2.345000001))
	require.Equal(t, -1.23, Round2(-1.234))
}
