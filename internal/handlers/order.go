package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/andesrent/rental-admin/internal/coupon"
	"github.com/andesrent/rental-admin/internal/events"
	"github.com/andesrent/rental-admin/internal/logging"
	"github.com/andesrent/rental-admin/internal/models"
	"github.com/andesrent/rental-admin/internal/pricing"
	"github.com/andesrent/rental-admin/internal/util"
)

// orderTransitions is the only place that knows which status moves are legal.
var orderTransitions = map[string][]string{
	models.OrderStatusPending:    {models.OrderStatusProcessing, models.OrderStatusOnHold, models.OrderStatusCancelled, models.OrderStatusFailed},
	models.OrderStatusOnHold:     {models.OrderStatusProcessing, models.OrderStatusCancelled, models.OrderStatusFailed},
	models.OrderStatusProcessing: {models.OrderStatusCompleted, models.OrderStatusCancelled, models.OrderStatusFailed},
	models.OrderStatusCompleted:  {models.OrderStatusRefunded},
}

func canTransition(from, to string) bool {
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type OrderHandler struct {
	DB       *gorm.DB
	Coupons  *coupon.Service
	Producer events.Publisher
}

type orderItemRequest struct {
	ProductID uint `json:"product_id"`
	Quantity  uint `json:"quantity"`
}

type createOrderRequest struct {
	CustomerID       uint               `json:"customer_id"`
	NumDays          int                `json:"num_days"`
	Items            []orderItemRequest `json:"items"`
	CouponCode       string             `json:"coupon_code"`
	ManualDiscount   float64            `json:"manual_discount"`
	ShippingMethodID *uint              `json:"shipping_method_id"`
	PaymentMethod    string             `json:"payment_method"`
	Region           string             `json:"region"`
	ApplyIVA         bool               `json:"apply_iva"`
}

func (h *OrderHandler) publish(c echo.Context, topic string, key string, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, topic, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Warn("event_publish_failed", "topic", topic, "error", err)
	}
}

func (h *OrderHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.create")

	var req createOrderRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("create_order_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.CustomerID == 0 {
		l.Warn("create_order_failed", "status", 400, "reason", "customer_id required")
		return echo.NewHTTPError(http.StatusBadRequest, "customer_id required")
	}
	if len(req.Items) == 0 {
		l.Warn("create_order_failed", "status", 400, "reason", "items required")
		return echo.NewHTTPError(http.StatusBadRequest, "items required")
	}
	if req.ManualDiscount < 0 {
		l.Warn("create_order_failed", "status", 400, "reason", "negative manual discount")
		return echo.NewHTTPError(http.StatusBadRequest, "manual discount cannot be negative")
	}
	if req.NumDays < 1 {
		req.NumDays = 1
	}

	ids := make([]uint, 0, len(req.Items))
	for _, it := range req.Items {
		if it.ProductID == 0 {
			l.Warn("create_order_failed", "status", 400, "reason", "product_id required")
			return echo.NewHTTPError(http.StatusBadRequest, "product_id required")
		}
		if it.Quantity == 0 {
			l.Warn("create_order_failed", "status", 400, "reason", "quantity must be > 0")
			return echo.NewHTTPError(http.StatusBadRequest, "quantity must be > 0")
		}
		ids = append(ids, it.ProductID)
	}

	var products []models.Product
	if err := h.DB.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		l.Error("create_order_failed", "status", 500, "reason", "cannot load products", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot load products")
	}
	byID := make(map[uint]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	// snapshot unit prices now; later catalog edits must not move this order
	orderItems := make([]models.OrderItem, 0, len(req.Items))
	lines := make([]pricing.LineItem, 0, len(req.Items))
	for _, it := range req.Items {
		p, ok := byID[it.ProductID]
		if !ok {
			l.Warn("create_order_failed", "status", 400, "reason", "product not found", "product_id", it.ProductID)
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("product %d not found", it.ProductID))
		}
		orderItems = append(orderItems, models.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  it.Quantity,
			LineTotal: pricing.Round2(p.Price * float64(it.Quantity)),
		})
		lines = append(lines, pricing.LineItem{UnitPrice: p.Price, Quantity: it.Quantity})
	}

	var shippingCost float64
	if req.ShippingMethodID != nil {
		var method models.ShippingMethod
		if err := h.DB.WithContext(ctx).First(&method, *req.ShippingMethodID).Error; err != nil {
			l.Warn("create_order_failed", "status", 400, "reason", "shipping method not found", "error", err)
			return echo.NewHTTPError(http.StatusBadRequest, "shipping method not found")
		}
		if !method.Enabled {
			l.Warn("create_order_failed", "status", 400, "reason", "shipping method disabled")
			return echo.NewHTTPError(http.StatusBadRequest, "shipping method is disabled")
		}
		shippingCost = method.Cost
	}

	productsSubtotal := pricing.ProductsSubtotal(lines, req.NumDays)
	couponBase := pricing.Round2(productsSubtotal + shippingCost)

	var validated *coupon.ValidationResult
	if req.CouponCode != "" {
		var err error
		validated, err = h.Coupons.Validate(ctx, req.CouponCode, couponBase, req.CustomerID, lines)
		if err != nil {
			l.Error("create_order_failed", "status", 500, "reason", "coupon validation error", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot validate coupon")
		}
		if !validated.IsValid {
			l.Warn("create_order_failed", "status", 400, "reason", validated.ErrorMessage)
			return echo.NewHTTPError(http.StatusBadRequest, validated.ErrorMessage)
		}
	}

	var couponDiscount float64
	if validated != nil {
		couponDiscount = validated.DiscountAmount
	}
	totals := pricing.ComputeTotals(lines, req.NumDays, shippingCost, req.ManualDiscount, couponDiscount, req.ApplyIVA)

	order := models.Order{
		Number:           uuid.NewString(),
		UserID:           req.CustomerID,
		Status:           models.OrderStatusPending,
		NumDays:          req.NumDays,
		PaymentMethod:    req.PaymentMethod,
		Region:           req.Region,
		Subtotal:         totals.ProductsSubtotal,
		ManualDiscount:   req.ManualDiscount,
		CouponCode:       "",
		CouponDiscount:   couponDiscount,
		ShippingMethodID: req.ShippingMethodID,
		ShippingTotal:    shippingCost,
		ApplyIVA:         req.ApplyIVA,
		IVA:              totals.IVA,
		Total:            totals.Total,
		Items:            orderItems,
	}
	if validated != nil {
		order.CouponCode = validated.Coupon.Code
	}

	// coupon usage moves in the same transaction as the order row, so a
	// concurrent checkout cannot double-spend the last usage slot
	err := h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		if validated != nil {
			return h.Coupons.Redeem(ctx, tx, validated.Coupon, req.CustomerID, order.ID, couponDiscount)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, coupon.ErrExhausted) || errors.Is(err, coupon.ErrPerUserLimit) {
			l.Warn("create_order_failed", "status", 409, "reason", err.Error())
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		l.Error("create_order_failed", "status", 500, "reason", "cannot create order", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot create order")
	}

	h.publish(c, events.TopicOrderEvents, order.Number, map[string]any{
		"type":     "order_created",
		"order_id": order.ID,
		"number":   order.Number,
		"user_id":  order.UserID,
		"total":    order.Total,
	})

	l.Info("create_order_success", "order_id", order.ID, "total", order.Total)
	return respond(c, http.StatusCreated, order)
}

func (h *OrderHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get")

	id, err := parseID(c)
	if err != nil {
		return err
	}

	var order models.Order
	if err := h.DB.WithContext(ctx).Preload("Items").First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("get_order_failed", "status", 404, "reason", "order not found")
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		l.Error("get_order_failed", "status", 500, "reason", "db error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot load order")
	}

	return respond(c, http.StatusOK, order)
}

func (h *OrderHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list")

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("limit"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	q := h.DB.WithContext(ctx).Model(&models.Order{})
	if status := c.QueryParam("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		l.Error("list_orders_failed", "status", 500, "reason", "cannot count orders", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot count orders")
	}

	var orders []models.Order
	if err := q.Preload("Items").Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&orders).Error; err != nil {
		l.Error("list_orders_failed", "status", 500, "reason", "cannot list orders", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list orders")
	}

	l.Info("list_orders_success")
	return respondList(c, orders, page, offset, limit, total)
}

func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.update_status")

	id, err := parseID(c)
	if err != nil {
		return err
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil || req.Status == "" {
		l.Warn("update_order_status_failed", "status", 400, "reason", "invalid body")
		return echo.NewHTTPError(http.StatusBadRequest, "status required")
	}

	var order models.Order
	if err := h.DB.WithContext(ctx).First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("update_order_status_failed", "status", 404, "reason", "order not found")
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		l.Error("update_order_status_failed", "status", 500, "reason", "db error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot load order")
	}

	if !canTransition(order.Status, req.Status) {
		l.Warn("update_order_status_failed", "status", 409, "reason", "illegal transition", "from", order.Status, "to", req.Status)
		return echo.NewHTTPError(http.StatusConflict, fmt.Sprintf("cannot transition from %s to %s", order.Status, req.Status))
	}

	previous := order.Status
	order.Status = req.Status
	if err := h.DB.WithContext(ctx).Save(&order).Error; err != nil {
		l.Error("update_order_status_failed", "status", 500, "reason", "cannot save order", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot save order")
	}

	h.publish(c, events.TopicOrderEvents, order.Number, map[string]any{
		"type":     "order_status_changed",
		"order_id": order.ID,
		"number":   order.Number,
		"from":     previous,
		"to":       order.Status,
	})

	l.Info("update_order_status_success", "order_id", order.ID, "from", previous, "to", order.Status)
	return respond(c, http.StatusOK, order)
}

// Duplicate creates a fresh pending order from an existing one. Prices are
// re-snapshotted at current catalog values and the coupon does not carry
// over; a new code must be validated for the new order.
func (h *OrderHandler) Duplicate(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.duplicate")

	id, err := parseID(c)
	if err != nil {
		return err
	}

	var src models.Order
	if err := h.DB.WithContext(ctx).Preload("Items").First(&src, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("duplicate_order_failed", "status", 404, "reason", "order not found")
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		l.Error("duplicate_order_failed", "status", 500, "reason", "db error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot load order")
	}

	ids := make([]uint, 0, len(src.Items))
	for _, it := range src.Items {
		ids = append(ids, it.ProductID)
	}
	var products []models.Product
	if err := h.DB.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		l.Error("duplicate_order_failed", "status", 500, "reason", "cannot load products", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot load products")
	}
	byID := make(map[uint]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	items := make([]models.OrderItem, 0, len(src.Items))
	lines := make([]pricing.LineItem, 0, len(src.Items))
	for _, it := range src.Items {
		p, ok := byID[it.ProductID]
		if !ok {
			l.Warn("duplicate_order_failed", "status", 409, "reason", "product no longer exists", "product_id", it.ProductID)
			return echo.NewHTTPError(http.StatusConflict, fmt.Sprintf("product %d no longer exists", it.ProductID))
		}
		items = append(items, models.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  it.Quantity,
			LineTotal: pricing.Round2(p.Price * float64(it.Quantity)),
		})
		lines = append(lines, pricing.LineItem{UnitPrice: p.Price, Quantity: it.Quantity})
	}

	totals := pricing.ComputeTotals(lines, src.NumDays, src.ShippingTotal, src.ManualDiscount, 0, src.ApplyIVA)

	dup := models.Order{
		Number:           uuid.NewString(),
		UserID:           src.UserID,
		Status:           models.OrderStatusPending,
		NumDays:          src.NumDays,
		PaymentMethod:    src.PaymentMethod,
		Region:           src.Region,
		Subtotal:         totals.ProductsSubtotal,
		ManualDiscount:   src.ManualDiscount,
		ShippingMethodID: src.ShippingMethodID,
		ShippingTotal:    src.ShippingTotal,
		ApplyIVA:         src.ApplyIVA,
		IVA:              totals.IVA,
		Total:            totals.Total,
		Items:            items,
	}
	if err := h.DB.WithContext(ctx).Create(&dup).Error; err != nil {
		l.Error("duplicate_order_failed", "status", 500, "reason", "cannot create order", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot create order")
	}

	h.publish(c, events.TopicOrderEvents, dup.Number, map[string]any{
		"type":      "order_duplicated",
		"order_id":  dup.ID,
		"source_id": src.ID,
		"number":    dup.Number,
		"total":     dup.Total,
	})

	l.Info("duplicate_order_success", "order_id", dup.ID, "source_id", src.ID)
	return respond(c, http.StatusCreated, dup)
}

// enqueueJob hands PDF/email/document work to the job consumers and answers
// 202; the dashboard polls for the artifact separately.
func (h *OrderHandler) enqueueJob(c echo.Context, kind string) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order."+kind)

	id, err := parseID(c)
	if err != nil {
		return err
	}

	var order models.Order
	if err := h.DB.WithContext(ctx).First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("order_job_failed", "status", 404, "reason", "order not found", "kind", kind)
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		l.Error("order_job_failed", "status", 500, "reason", "db error", "kind", kind, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot load order")
	}

	jobID := uuid.NewString()
	h.publish(c, events.TopicOrderJobs, order.Number, map[string]any{
		"type":     kind,
		"job_id":   jobID,
		"order_id": order.ID,
		"number":   order.Number,
	})

	l.Info("order_job_enqueued", "kind", kind, "order_id", order.ID, "job_id", jobID)
	return respond(c, http.StatusAccepted, map[string]any{
		"job_id":   jobID,
		"order_id": order.ID,
		"kind":     kind,
	})
}

func (h *OrderHandler) GenerateBudget(c echo.Context) error {
	return h.enqueueJob(c, "generate_budget")
}

func (h *OrderHandler) SendEmail(c echo.Context) error {
	return h.enqueueJob(c, "send_email")
}

func (h *OrderHandler) GenerateDocuments(c echo.Context) error {
	return h.enqueueJob(c, "generate_documents")
}
