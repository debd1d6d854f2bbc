package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/andesrent/rental-admin/internal/analytics"
	"github.com/andesrent/rental-admin/internal/logging"
)

type AnalyticsHandler struct {
	Analytics *analytics.Service
}

func (h *AnalyticsHandler) Advanced(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "analytics.advanced")

	start, end, err := analytics.Window(c.QueryParam("startDate"), c.QueryParam("endDate"))
	if err != nil {
		l.Warn("analytics_advanced_failed", "status", 400, "reason", "invalid date", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "dates must be YYYY-MM-DD")
	}

	report, err := h.Analytics.Advanced(ctx, start, end)
	if err != nil {
		l.Error("analytics_advanced_failed", "status", 500, "reason", "aggregation error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot build report")
	}

	l.Info("analytics_advanced_success", "orders", report.Orders.TotalOrders)
	return respond(c, http.StatusOK, report)
}

func (h *AnalyticsHandler) ProductRentals(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "analytics.product_rentals")

	productID, err := parseID(c)
	if err != nil {
		return err
	}

	start, end, err := analytics.Window(c.QueryParam("startDate"), c.QueryParam("endDate"))
	if err != nil {
		l.Warn("product_rentals_failed", "status", 400, "reason", "invalid date", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "dates must be YYYY-MM-DD")
	}

	report, err := h.Analytics.ProductRentals(ctx, productID, start, end)
	if err != nil {
		l.Error("product_rentals_failed", "status", 500, "reason", "aggregation error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot build report")
	}

	l.Info("product_rentals_success", "product_id", productID, "orders", report.Orders)
	return respond(c, http.StatusOK, report)
}
