package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/andesrent/rental-admin/internal/coupon"
	"github.com/andesrent/rental-admin/internal/models"
)

func newCouponHandler(t *testing.T) *CouponHandler {
	db := InitTestDB(t)
	return &CouponHandler{DB: db, Coupons: &coupon.Service{DB: db}}
}

func TestCreateCouponUppercasesCode(t *testing.T) {
	h := newCouponHandler(t)
	e := echo.New()

	rec, c := doJSONRequest(e, http.MethodPost, "/api/coupons", map[string]any{
		"code":          "save10",
		"discount_type": "percent",
		"amount":        10,
	})
	require.NoError(t, h.Create(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var cpn models.Coupon
	decodeEnvelope(t, rec, &cpn)
	require.Equal(t, "SAVE10", cpn.Code)
	require.Equal(t, models.CouponStatusPublish, cpn.Status)
}

func TestCreateCouponRejectsBadType(t *testing.T) {
	h := newCouponHandler(t)
	e := echo.New()

	_, c := doJSONRequest(e, http.MethodPost, "/api/coupons", map[string]any{
		"code":          "BAD",
		"discount_type": "bogo",
		"amount":        1,
	})
	err := h.Create(c)
	require.Error(t, err)
	require.Equal(t, http.StatusBadRequest, httpStatus(t, err))
}

func TestCreateCouponRejectsPercentOver100(t *testing.T) {
	h := newCouponHandler(t)
	e := echo.New()

	_, c := doJSONRequest(e, http.MethodPost, "/api/coupons", map[string]any{
		"code":          "ALL",
		"discount_type": "percent",
		"amount":        120,
	})
	err := h.Create(c)
	require.Error(t, err)
	require.Equal(t, http.StatusBadRequest, httpStatus(t, err))
}

func TestValidateCouponEndpoint(t *testing.T) {
	h := newCouponHandler(t)
	e := echo.New()

	h.DB.Create(&models.Coupon{
		Code:         "SAVE10",
		DiscountType: models.CouponTypePercent,
		Amount:       10,
		Status:       models.CouponStatusPublish,
	})

	rec, c := doJSONRequest(e, http.MethodGet, "/api/coupons/validate/SAVE10?subtotal=65000&userId=1", nil)
	c.SetParamNames("code")
	c.SetParamValues("SAVE10")
	require.NoError(t, h.Validate(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var result coupon.ValidationResult
	decodeEnvelope(t, rec, &result)
	require.True(t, result.IsValid)
	require.Equal(t, 6500.0, result.DiscountAmount)
}

func TestValidateCouponEndpointRejection(t *testing.T) {
	h := newCouponHandler(t)
	e := echo.New()

	past := time.Now().UTC().Add(-time.Hour)
	h.DB.Create(&models.Coupon{
		Code:         "OLD",
		DiscountType: models.CouponTypePercent,
		Amount:       10,
		Status:       models.CouponStatusPublish,
		DateExpires:  &past,
	})

	rec, c := doJSONRequest(e, http.MethodGet, "/api/coupons/validate/OLD?subtotal=1000", nil)
	c.SetParamNames("code")
	c.SetParamValues("OLD")
	require.NoError(t, h.Validate(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var result coupon.ValidationResult
	decodeEnvelope(t, rec, &result)
	require.False(t, result.IsValid)
	require.Equal(t, coupon.MsgExpired, result.ErrorMessage)
}

func TestValidateCouponEndpointRequiresSubtotal(t *testing.T) {
	h := newCouponHandler(t)
	e := echo.New()

	_, c := doJSONRequest(e, http.MethodGet, "/api/coupons/validate/SAVE10", nil)
	c.SetParamNames("code")
	c.SetParamValues("SAVE10")

	err := h.Validate(c)
	require.Error(t, err)
	require.Equal(t, http.StatusBadRequest, httpStatus(t, err))
}

func TestCouponStats(t *testing.T) {
	h := newCouponHandler(t)
	e := echo.New()

	h.DB.Create(&models.Coupon{Code: "SAVE10", DiscountType: models.CouponTypePercent, Amount: 10, Status: models.CouponStatusPublish, UsageCount: 2})
	h.DB.Create(&models.Coupon{Code: "DRAFTY", DiscountType: models.CouponTypeFixedCart, Amount: 500, Status: models.CouponStatusDraft})
	h.DB.Create(&models.CouponRedemption{CouponID: 1, UserID: 1, OrderID: 1, Amount: 6500})
	h.DB.Create(&models.CouponRedemption{CouponID: 1, UserID: 2, OrderID: 2, Amount: 1200})

	rec, c := doJSONRequest(e, http.MethodGet, "/api/coupons/stats", nil)
	require.NoError(t, h.Stats(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		TotalCoupons  int `json:"total_coupons"`
		ActiveCoupons int `json:"active_coupons"`
		Coupons       []struct {
			Code          string  `json:"code"`
			Redemptions   int64   `json:"redemptions"`
			DiscountTotal float64 `json:"discount_total"`
		} `json:"coupons"`
	}
	decodeEnvelope(t, rec, &data)

	require.Equal(t, 2, data.TotalCoupons)
	require.Equal(t, 1, data.ActiveCoupons)
	require.Equal(t, "SAVE10", data.Coupons[0].Code)
	require.Equal(t, int64(2), data.Coupons[0].Redemptions)
	require.Equal(t, 7700.0, data.Coupons[0].DiscountTotal)
}

func TestCouponDebugReportsServerTime(t *testing.T) {
	h := newCouponHandler(t)
	e := echo.New()

	h.DB.Create(&models.Coupon{Code: "ANY", DiscountType: models.CouponTypeFixedCart, Amount: 1, Status: models.CouponStatusPublish})

	rec, c := doJSONRequest(e, http.MethodGet, "/api/coupons/debug", nil)
	require.NoError(t, h.Debug(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		ServerTime time.Time       `json:"server_time"`
		Coupons    []models.Coupon `json:"coupons"`
	}
	decodeEnvelope(t, rec, &data)
	require.False(t, data.ServerTime.IsZero())
	require.Len(t, data.Coupons, 1)
}
