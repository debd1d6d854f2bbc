package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/andesrent/rental-admin/internal/logging"
	"github.com/andesrent/rental-admin/internal/models"
	"github.com/andesrent/rental-admin/internal/pricing"
	"github.com/andesrent/rental-admin/internal/util"
)

type ShippingHandler struct {
	DB *gorm.DB
}

type shippingMethodRequest struct {
	Name          string  `json:"name"`
	Cost          float64 `json:"cost"`
	ShippingType  string  `json:"shipping_type"`
	MinAmount     float64 `json:"min_amount"`
	MaxAmount     float64 `json:"max_amount"`
	Enabled       *bool   `json:"enabled"`
	EstimatedDays int     `json:"estimated_days"`
}

func (h *ShippingHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "shipping.list")

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("limit"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	q := h.DB.WithContext(ctx).Model(&models.ShippingMethod{})
	if c.QueryParam("enabled") == "true" {
		q = q.Where("enabled = ?", true)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		l.Error("list_shipping_failed", "status", 500, "reason", "cannot count shipping methods", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot count shipping methods")
	}

	var items []models.ShippingMethod
	if err := q.Order("id ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		l.Error("list_shipping_failed", "status", 500, "reason", "cannot list shipping methods", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list shipping methods")
	}

	l.Info("list_shipping_success")
	return respondList(c, items, page, offset, limit, total)
}

func (h *ShippingHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "shipping.get")

	id, err := parseID(c)
	if err != nil {
		return err
	}

	var method models.ShippingMethod
	if err := h.DB.WithContext(ctx).First(&method, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("get_shipping_failed", "status", 404, "reason", "shipping method not found")
			return echo.NewHTTPError(http.StatusNotFound, "shipping method not found")
		}
		l.Error("get_shipping_failed", "status", 500, "reason", "db error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot load shipping method")
	}

	return respond(c, http.StatusOK, method)
}

func (h *ShippingHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "shipping.create")

	var req shippingMethodRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("create_shipping_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Name == "" {
		l.Warn("create_shipping_failed", "status", 400, "reason", "name required")
		return echo.NewHTTPError(http.StatusBadRequest, "name required")
	}
	if req.Cost < 0 {
		l.Warn("create_shipping_failed", "status", 400, "reason", "negative cost")
		return echo.NewHTTPError(http.StatusBadRequest, "cost cannot be negative")
	}

	method := models.ShippingMethod{
		Name:          req.Name,
		Cost:          req.Cost,
		ShippingType:  req.ShippingType,
		MinAmount:     req.MinAmount,
		MaxAmount:     req.MaxAmount,
		Enabled:       true,
		EstimatedDays: req.EstimatedDays,
	}
	if req.Enabled != nil {
		method.Enabled = *req.Enabled
	}

	if err := h.DB.WithContext(ctx).Create(&method).Error; err != nil {
		l.Error("create_shipping_failed", "status", 500, "reason", "cannot create shipping method", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot create shipping method")
	}

	l.Info("create_shipping_success", "method_id", method.ID)
	return respond(c, http.StatusCreated, method)
}

func (h *ShippingHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "shipping.update")

	id, err := parseID(c)
	if err != nil {
		return err
	}

	var req shippingMethodRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("update_shipping_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	var method models.ShippingMethod
	if err := h.DB.WithContext(ctx).First(&method, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("update_shipping_failed", "status", 404, "reason", "shipping method not found")
			return echo.NewHTTPError(http.StatusNotFound, "shipping method not found")
		}
		l.Error("update_shipping_failed", "status", 500, "reason", "db error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot load shipping method")
	}

	if req.Cost < 0 {
		l.Warn("update_shipping_failed", "status", 400, "reason", "negative cost")
		return echo.NewHTTPError(http.StatusBadRequest, "cost cannot be negative")
	}

	method.Name = req.Name
	method.Cost = req.Cost
	method.ShippingType = req.ShippingType
	method.MinAmount = req.MinAmount
	method.MaxAmount = req.MaxAmount
	method.EstimatedDays = req.EstimatedDays
	if req.Enabled != nil {
		method.Enabled = *req.Enabled
	}

	if err := h.DB.WithContext(ctx).Save(&method).Error; err != nil {
		l.Error("update_shipping_failed", "status", 500, "reason", "cannot save shipping method", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot save shipping method")
	}

	l.Info("update_shipping_success", "method_id", method.ID)
	return respond(c, http.StatusOK, method)
}

func (h *ShippingHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "shipping.delete")

	id, err := parseID(c)
	if err != nil {
		return err
	}

	res := h.DB.WithContext(ctx).Delete(&models.ShippingMethod{}, id)
	if res.Error != nil {
		l.Error("delete_shipping_failed", "status", 500, "reason", "cannot delete shipping method", "error", res.Error)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot delete shipping method")
	}
	if res.RowsAffected == 0 {
		l.Warn("delete_shipping_failed", "status", 404, "reason", "shipping method not found")
		return echo.NewHTTPError(http.StatusNotFound, "shipping method not found")
	}

	l.Info("delete_shipping_success", "method_id", id)
	return c.NoContent(http.StatusNoContent)
}

// Stats summarizes usage per method across all orders.
func (h *ShippingHandler) Stats(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "shipping.stats")

	var methods []models.ShippingMethod
	if err := h.DB.WithContext(ctx).Order("id ASC").Find(&methods).Error; err != nil {
		l.Error("shipping_stats_failed", "status", 500, "reason", "cannot list shipping methods", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list shipping methods")
	}

	type methodStat struct {
		MethodID  uint    `json:"method_id"`
		Name      string  `json:"name"`
		Enabled   bool    `json:"enabled"`
		Orders    int64   `json:"orders"`
		CostTotal float64 `json:"cost_total"`
	}

	stats := make([]methodStat, 0, len(methods))
	for _, m := range methods {
		var orders int64
		var costTotal float64
		row := h.DB.WithContext(ctx).Model(&models.Order{}).
			Where("shipping_method_id = ?", m.ID).
			Select("COUNT(*) AS orders, COALESCE(SUM(shipping_total), 0) AS cost_total").
			Row()
		if err := row.Scan(&orders, &costTotal); err != nil {
			l.Error("shipping_stats_failed", "status", 500, "reason", "cannot aggregate orders", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot aggregate shipping stats")
		}
		stats = append(stats, methodStat{
			MethodID:  m.ID,
			Name:      m.Name,
			Enabled:   m.Enabled,
			Orders:    orders,
			CostTotal: pricing.Round2(costTotal),
		})
	}

	l.Info("shipping_stats_success")
	return respond(c, http.StatusOK, map[string]any{
		"total_methods": len(methods),
		"methods":       stats,
	})
}
