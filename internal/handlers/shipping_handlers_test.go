package handlers

import (
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/andesrent/rental-admin/internal/models"
)

func TestCreateShippingMethodDefaultsEnabled(t *testing.T) {
	db := InitTestDB(t)
	h := &ShippingHandler{DB: db}
	e := echo.New()

	rec, c := doJSONRequest(e, http.MethodPost, "/api/shipping-methods", map[string]any{
		"name":           "Courier",
		"cost":           5000,
		"shipping_type":  "flat_rate",
		"estimated_days": 2,
	})
	require.NoError(t, h.Create(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var method models.ShippingMethod
	decodeEnvelope(t, rec, &method)
	require.Equal(t, "Courier", method.Name)
	require.Equal(t, 5000.0, method.Cost)
	require.True(t, method.Enabled)
}

func TestCreateShippingMethodRejectsNegativeCost(t *testing.T) {
	db := InitTestDB(t)
	h := &ShippingHandler{DB: db}
	e := echo.New()

	_, c := doJSONRequest(e, http.MethodPost, "/api/shipping-methods", map[string]any{
		"name": "Courier",
		"cost": -1,
	})
	err := h.Create(c)
	require.Error(t, err)
	require.Equal(t, http.StatusBadRequest, httpStatus(t, err))
}

func TestListShippingMethodsEnabledFilter(t *testing.T) {
	db := InitTestDB(t)
	h := &ShippingHandler{DB: db}
	e := echo.New()

	db.Create(&models.ShippingMethod{Name: "Courier", Cost: 5000, Enabled: true})
	db.Create(&models.ShippingMethod{Name: "Pickup", Cost: 0, Enabled: false})

	rec, c := doJSONRequest(e, http.MethodGet, "/api/shipping-methods?enabled=true", nil)
	require.NoError(t, h.List(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var items []models.ShippingMethod
	decodeEnvelope(t, rec, &items)
	require.Len(t, items, 1)
	require.Equal(t, "Courier", items[0].Name)
}

func TestUpdateShippingMethodDisables(t *testing.T) {
	db := InitTestDB(t)
	h := &ShippingHandler{DB: db}
	e := echo.New()

	db.Create(&models.ShippingMethod{Name: "Courier", Cost: 5000, Enabled: true})

	enabled := false
	rec, c := doJSONRequest(e, http.MethodPut, "/api/shipping-methods/1", map[string]any{
		"name":    "Courier",
		"cost":    6000,
		"enabled": enabled,
	})
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, h.Update(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var method models.ShippingMethod
	decodeEnvelope(t, rec, &method)
	require.Equal(t, 6000.0, method.Cost)
	require.False(t, method.Enabled)
}

func TestDeleteShippingMethodNotFound(t *testing.T) {
	db := InitTestDB(t)
	h := &ShippingHandler{DB: db}
	e := echo.New()

	_, c := doJSONRequest(e, http.MethodDelete, "/api/shipping-methods/5", nil)
	c.SetParamNames("id")
	c.SetParamValues("5")

	err := h.Delete(c)
	require.Error(t, err)
	require.Equal(t, http.StatusNotFound, httpStatus(t, err))
}

func TestShippingStatsAggregatesOrders(t *testing.T) {
	db := InitTestDB(t)
	h := &ShippingHandler{DB: db}
	e := echo.New()

	db.Create(&models.ShippingMethod{Name: "Courier", Cost: 5000, Enabled: true})
	db.Create(&models.ShippingMethod{Name: "Pickup", Cost: 0, Enabled: true})

	methodID := uint(1)
	db.Create(&models.Order{Number: "n-1", UserID: 1, Status: models.OrderStatusCompleted, NumDays: 1, ShippingMethodID: &methodID, ShippingTotal: 5000})
	db.Create(&models.Order{Number: "n-2", UserID: 2, Status: models.OrderStatusCompleted, NumDays: 1, ShippingMethodID: &methodID, ShippingTotal: 5000})

	rec, c := doJSONRequest(e, http.MethodGet, "/api/shipping-methods/stats", nil)
	require.NoError(t, h.Stats(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		TotalMethods int `json:"total_methods"`
		Methods      []struct {
			MethodID  uint    `json:"method_id"`
			Orders    int64   `json:"orders"`
			CostTotal float64 `json:"cost_total"`
		} `json:"methods"`
	}
	decodeEnvelope(t, rec, &data)

	require.Equal(t, 2, data.TotalMethods)
	require.Equal(t, int64(2), data.Methods[0].Orders)
	require.Equal(t, 10000.0, data.Methods[0].CostTotal)
	require.Zero(t, data.Methods[1].Orders)
}
