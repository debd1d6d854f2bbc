package handlers

import (
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/andesrent/rental-admin/internal/coupon"
	"github.com/andesrent/rental-admin/internal/events"
	"github.com/andesrent/rental-admin/internal/models"
)

func newOrderHandler(t *testing.T) *OrderHandler {
	db := InitTestDB(t)
	return &OrderHandler{DB: db, Coupons: &coupon.Service{DB: db}, Producer: events.Nop{}}
}

func TestCreateOrderComputesTotals(t *testing.T) {
	h := newOrderHandler(t)
	e := echo.New()

	h.DB.Create(&models.Product{Name: "Speaker", Price: 10000, Stock: 10, Active: true})
	h.DB.Create(&models.ShippingMethod{Name: "Courier", Cost: 5000, Enabled: true})

	shippingID := uint(1)
	rec, c := doJSONRequest(e, http.MethodPost, "/api/orders", map[string]any{
		"customer_id":        1,
		"num_days":           2,
		"items":              []map[string]any{{"product_id": 1, "quantity": 3}},
		"shipping_method_id": shippingID,
		"apply_iva":          true,
	})
	require.NoError(t, h.Create(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var order models.Order
	decodeEnvelope(t, rec, &order)
	require.Equal(t, 60000.0, order.Subtotal)
	require.Equal(t, 5000.0, order.ShippingTotal)
	require.Equal(t, 12350.0, order.IVA)
	require.Equal(t, 77350.0, order.Total)
	require.Equal(t, models.OrderStatusPending, order.Status)
	require.NotEmpty(t, order.Number)
	require.Len(t, order.Items, 1)
	require.Equal(t, 10000.0, order.Items[0].UnitPrice)
	require.Equal(t, 30000.0, order.Items[0].LineTotal)
}

func TestCreateOrderWithCouponRedeems(t *testing.T) {
	h := newOrderHandler(t)
	e := echo.New()

	h.DB.Create(&models.Product{Name: "Speaker", Price: 10000, Stock: 10, Active: true})
	h.DB.Create(&models.ShippingMethod{Name: "Courier", Cost: 5000, Enabled: true})
	h.DB.Create(&models.Coupon{
		Code:         "SAVE10",
		DiscountType: models.CouponTypePercent,
		Amount:       10,
		Status:       models.CouponStatusPublish,
	})

	rec, c := doJSONRequest(e, http.MethodPost, "/api/orders", map[string]any{
		"customer_id":        1,
		"num_days":           2,
		"items":              []map[string]any{{"product_id": 1, "quantity": 3}},
		"shipping_method_id": 1,
		"coupon_code":        "save10",
		"apply_iva":          true,
	})
	require.NoError(t, h.Create(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var order models.Order
	decodeEnvelope(t, rec, &order)
	require.Equal(t, "SAVE10", order.CouponCode)
	require.Equal(t, 6500.0, order.CouponDiscount)
	require.Equal(t, 11115.0, order.IVA)
	require.Equal(t, 69615.0, order.Total)

	var cpn models.Coupon
	require.NoError(t, h.DB.First(&cpn, 1).Error)
	require.Equal(t, 1, cpn.UsageCount)

	var redemption models.CouponRedemption
	require.NoError(t, h.DB.First(&redemption).Error)
	require.Equal(t, order.ID, redemption.OrderID)
	require.Equal(t, 6500.0, redemption.Amount)
}

func TestCreateOrderRejectsInvalidCoupon(t *testing.T) {
	h := newOrderHandler(t)
	e := echo.New()

	h.DB.Create(&models.Product{Name: "Speaker", Price: 10000, Stock: 10, Active: true})

	_, c := doJSONRequest(e, http.MethodPost, "/api/orders", map[string]any{
		"customer_id": 1,
		"items":       []map[string]any{{"product_id": 1, "quantity": 1}},
		"coupon_code": "NOPE",
	})
	err := h.Create(c)
	require.Error(t, err)
	require.Equal(t, http.StatusBadRequest, httpStatus(t, err))
	require.Equal(t, coupon.MsgNotFound, err.(*echo.HTTPError).Message)

	var count int64
	h.DB.Model(&models.Order{}).Count(&count)
	require.Zero(t, count)
}

func TestCreateOrderRejectsDisabledShipping(t *testing.T) {
	h := newOrderHandler(t)
	e := echo.New()

	h.DB.Create(&models.Product{Name: "Speaker", Price: 10000, Stock: 10, Active: true})
	h.DB.Create(&models.ShippingMethod{Name: "Courier", Cost: 5000, Enabled: false})

	_, c := doJSONRequest(e, http.MethodPost, "/api/orders", map[string]any{
		"customer_id":        1,
		"items":              []map[string]any{{"product_id": 1, "quantity": 1}},
		"shipping_method_id": 1,
	})
	err := h.Create(c)
	require.Error(t, err)
	require.Equal(t, http.StatusBadRequest, httpStatus(t, err))
}

func TestCreateOrderRejectsUnknownProduct(t *testing.T) {
	h := newOrderHandler(t)
	e := echo.New()

	_, c := doJSONRequest(e, http.MethodPost, "/api/orders", map[string]any{
		"customer_id": 1,
		"items":       []map[string]any{{"product_id": 7, "quantity": 1}},
	})
	err := h.Create(c)
	require.Error(t, err)
	require.Equal(t, http.StatusBadRequest, httpStatus(t, err))
}

func TestCreateOrderExhaustedCouponConflicts(t *testing.T) {
	h := newOrderHandler(t)
	e := echo.New()

	h.DB.Create(&models.Product{Name: "Speaker", Price: 10000, Stock: 10, Active: true})
	h.DB.Create(&models.Coupon{
		Code:         "ONCE",
		DiscountType: models.CouponTypeFixedCart,
		Amount:       1000,
		Status:       models.CouponStatusPublish,
		UsageLimit:   1,
	})

	body := map[string]any{
		"customer_id": 1,
		"items":       []map[string]any{{"product_id": 1, "quantity": 1}},
		"coupon_code": "ONCE",
	}
	_, c := doJSONRequest(e, http.MethodPost, "/api/orders", body)
	require.NoError(t, h.Create(c))

	body["customer_id"] = 2
	_, c = doJSONRequest(e, http.MethodPost, "/api/orders", body)
	err := h.Create(c)
	require.Error(t, err)
	require.Equal(t, http.StatusConflict, httpStatus(t, err))

	// the losing order must not survive the rollback
	var count int64
	h.DB.Model(&models.Order{}).Count(&count)
	require.Equal(t, int64(1), count)
}

func TestUpdateOrderStatusFollowsLifecycle(t *testing.T) {
	h := newOrderHandler(t)
	e := echo.New()

	h.DB.Create(&models.Order{Number: "n-1", UserID: 1, Status: models.OrderStatusPending, NumDays: 1})

	rec, c := doJSONRequest(e, http.MethodPut, "/api/orders/1/status", map[string]any{"status": "processing"})
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, h.UpdateStatus(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var order models.Order
	decodeEnvelope(t, rec, &order)
	require.Equal(t, models.OrderStatusProcessing, order.Status)
}

func TestUpdateOrderStatusRejectsIllegalTransition(t *testing.T) {
	h := newOrderHandler(t)
	e := echo.New()

	h.DB.Create(&models.Order{Number: "n-1", UserID: 1, Status: models.OrderStatusCompleted, NumDays: 1})

	_, c := doJSONRequest(e, http.MethodPut, "/api/orders/1/status", map[string]any{"status": "pending"})
	c.SetParamNames("id")
	c.SetParamValues("1")

	err := h.UpdateStatus(c)
	require.Error(t, err)
	require.Equal(t, http.StatusConflict, httpStatus(t, err))

	var order models.Order
	require.NoError(t, h.DB.First(&order, 1).Error)
	require.Equal(t, models.OrderStatusCompleted, order.Status)
}

func TestDuplicateOrderResnapshotsPrices(t *testing.T) {
	h := newOrderHandler(t)
	e := echo.New()

	h.DB.Create(&models.Product{Name: "Speaker", Price: 10000, Stock: 10, Active: true})

	_, c := doJSONRequest(e, http.MethodPost, "/api/orders", map[string]any{
		"customer_id": 1,
		"num_days":    2,
		"items":       []map[string]any{{"product_id": 1, "quantity": 3}},
		"apply_iva":   true,
	})
	require.NoError(t, h.Create(c))

	// price change after the original order
	h.DB.Model(&models.Product{}).Where("id = ?", 1).Update("price", 12000)

	rec, c := doJSONRequest(e, http.MethodPost, "/api/orders/1/duplicate", nil)
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, h.Duplicate(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var dup models.Order
	decodeEnvelope(t, rec, &dup)
	require.Equal(t, 72000.0, dup.Subtotal)
	require.Equal(t, models.OrderStatusPending, dup.Status)
	require.Empty(t, dup.CouponCode)
	require.Zero(t, dup.CouponDiscount)
	require.Equal(t, 12000.0, dup.Items[0].UnitPrice)
}

func TestDuplicateOrderConflictsWhenProductGone(t *testing.T) {
	h := newOrderHandler(t)
	e := echo.New()

	h.DB.Create(&models.Product{Name: "Speaker", Price: 10000, Stock: 10, Active: true})

	_, c := doJSONRequest(e, http.MethodPost, "/api/orders", map[string]any{
		"customer_id": 1,
		"items":       []map[string]any{{"product_id": 1, "quantity": 1}},
	})
	require.NoError(t, h.Create(c))

	h.DB.Delete(&models.Product{}, 1)

	_, c = doJSONRequest(e, http.MethodPost, "/api/orders/1/duplicate", nil)
	c.SetParamNames("id")
	c.SetParamValues("1")

	err := h.Duplicate(c)
	require.Error(t, err)
	require.Equal(t, http.StatusConflict, httpStatus(t, err))
}

func TestListOrdersFiltersByStatus(t *testing.T) {
	h := newOrderHandler(t)
	e := echo.New()

	h.DB.Create(&models.Order{Number: "n-1", UserID: 1, Status: models.OrderStatusPending, NumDays: 1})
	h.DB.Create(&models.Order{Number: "n-2", UserID: 1, Status: models.OrderStatusCompleted, NumDays: 1})
	h.DB.Create(&models.Order{Number: "n-3", UserID: 2, Status: models.OrderStatusCompleted, NumDays: 1})

	rec, c := doJSONRequest(e, http.MethodGet, "/api/orders?status=completed", nil)
	require.NoError(t, h.List(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var orders []models.Order
	env := decodeEnvelope(t, rec, &orders)
	require.Len(t, orders, 2)
	require.NotNil(t, env.Meta)
}

func TestGenerateBudgetAccepted(t *testing.T) {
	h := newOrderHandler(t)
	e := echo.New()

	h.DB.Create(&models.Order{Number: "n-1", UserID: 1, Status: models.OrderStatusPending, NumDays: 1})

	rec, c := doJSONRequest(e, http.MethodPost, "/api/orders/1/budget", nil)
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, h.GenerateBudget(c))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var data struct {
		JobID   string `json:"job_id"`
		OrderID uint   `json:"order_id"`
		Kind    string `json:"kind"`
	}
	decodeEnvelope(t, rec, &data)
	require.NotEmpty(t, data.JobID)
	require.Equal(t, uint(1), data.OrderID)
	require.Equal(t, "generate_budget", data.Kind)
}

func TestGenerateBudgetUnknownOrder(t *testing.T) {
	h := newOrderHandler(t)
	e := echo.New()

	_, c := doJSONRequest(e, http.MethodPost, "/api/orders/9/budget", nil)
	c.SetParamNames("id")
	c.SetParamValues("9")

	err := h.GenerateBudget(c)
	require.Error(t, err)
	require.Equal(t, http.StatusNotFound, httpStatus(t, err))
}
