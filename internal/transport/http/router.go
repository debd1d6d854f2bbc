package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/andesrent/rental-admin/internal/auth"
	"github.com/andesrent/rental-admin/internal/handlers"
)

type Deps struct {
	AuthHandler      *handlers.AuthHandler
	CategoryHandler  *handlers.CategoryHandler
	ProductHandler   *handlers.ProductHandler
	CouponHandler    *handlers.CouponHandler
	ShippingHandler  *handlers.ShippingHandler
	OrderHandler     *handlers.OrderHandler
	AnalyticsHandler *handlers.AnalyticsHandler
	Tokens           *auth.TokenService
}

func Register(e *echo.Echo, d *Deps) {
	e.HTTPErrorHandler = handlers.HTTPErrorHandler

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	api := e.Group("/api")

	api.POST("/auth/login", d.AuthHandler.Login)
	api.POST("/auth/refresh", d.AuthHandler.Refresh)

	read := api.Group("", d.Tokens.RequireUser)
	admin := api.Group("", d.Tokens.RequireAdmin)

	read.GET("/categories", d.CategoryHandler.List)
	admin.POST("/categories", d.CategoryHandler.Create)
	admin.PUT("/categories/:id", d.CategoryHandler.Update)
	admin.DELETE("/categories/:id", d.CategoryHandler.Delete)

	read.GET("/products", d.ProductHandler.List)
	read.GET("/products/search", d.ProductHandler.Search)
	read.GET("/products/:id", d.ProductHandler.Get)
	read.POST("/products/batch", d.ProductHandler.Batch)
	admin.POST("/products", d.ProductHandler.Create)
	admin.PUT("/products/:id", d.ProductHandler.Update)
	admin.DELETE("/products/:id", d.ProductHandler.Delete)

	read.GET("/coupons", d.CouponHandler.List)
	read.GET("/coupons/validate/:code", d.CouponHandler.Validate)
	read.GET("/coupons/stats", d.CouponHandler.Stats)
	admin.GET("/coupons/debug", d.CouponHandler.Debug)
	admin.POST("/coupons", d.CouponHandler.Create)
	admin.PUT("/coupons/:id", d.CouponHandler.Update)
	admin.DELETE("/coupons/:id", d.CouponHandler.Delete)

	read.GET("/shipping/methods", d.ShippingHandler.List)
	read.GET("/shipping/methods/:id", d.ShippingHandler.Get)
	read.GET("/shipping/stats", d.ShippingHandler.Stats)
	admin.POST("/shipping/methods", d.ShippingHandler.Create)
	admin.PUT("/shipping/methods/:id", d.ShippingHandler.Update)
	admin.DELETE("/shipping/methods/:id", d.ShippingHandler.Delete)

	read.GET("/orders", d.OrderHandler.List)
	read.GET("/orders/:id", d.OrderHandler.Get)
	admin.POST("/orders", d.OrderHandler.Create)
	admin.PUT("/orders/:id/status", d.OrderHandler.UpdateStatus)
	admin.POST("/orders/:id/duplicate", d.OrderHandler.Duplicate)
	admin.POST("/orders/:id/generate-budget", d.OrderHandler.GenerateBudget)
	admin.POST("/orders/:id/email", d.OrderHandler.SendEmail)
	admin.POST("/orders/:id/documents", d.OrderHandler.GenerateDocuments)

	read.GET("/analytics/advanced", d.AnalyticsHandler.Advanced)
	read.GET("/analytics/product-rentals/:id", d.AnalyticsHandler.ProductRentals)
}
