package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/andesrent/rental-admin/internal/coupon"
	"github.com/andesrent/rental-admin/internal/logging"
	"github.com/andesrent/rental-admin/internal/models"
	"github.com/andesrent/rental-admin/internal/pricing"
	"github.com/andesrent/rental-admin/internal/util"
)

type CouponHandler struct {
	DB      *gorm.DB
	Coupons *coupon.Service
}

type couponRequest struct {
	Code              string     `json:"code"`
	DiscountType      string     `json:"discount_type"`
	Amount            float64    `json:"amount"`
	UsageLimit        int        `json:"usage_limit"`
	UsageLimitPerUser int        `json:"usage_limit_per_user"`
	MinimumAmount     float64    `json:"minimum_amount"`
	MaximumAmount     float64    `json:"maximum_amount"`
	DateExpires       *time.Time `json:"date_expires"`
	Status            string     `json:"status"`
}

func validCouponType(t string) bool {
	switch t {
	case models.CouponTypePercent, models.CouponTypeFixedCart, models.CouponTypeFixedProduct:
		return true
	}
	return false
}

func (h *CouponHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "coupon.list")

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("limit"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	q := h.DB.WithContext(ctx).Model(&models.Coupon{})
	if s := c.QueryParam("search"); s != "" {
		q = q.Where("UPPER(code) LIKE ?", "%"+strings.ToUpper(s)+"%")
	}
	if status := c.QueryParam("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		l.Error("list_coupons_failed", "status", 500, "reason", "cannot count coupons", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot count coupons")
	}

	var items []models.Coupon
	if err := q.Order("id ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		l.Error("list_coupons_failed", "status", 500, "reason", "cannot list coupons", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list coupons")
	}

	l.Info("list_coupons_success")
	return respondList(c, items, page, offset, limit, total)
}

func (h *CouponHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "coupon.create")

	var req couponRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("create_coupon_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	if req.Code == "" {
		l.Warn("create_coupon_failed", "status", 400, "reason", "code required")
		return echo.NewHTTPError(http.StatusBadRequest, "code required")
	}
	if !validCouponType(req.DiscountType) {
		l.Warn("create_coupon_failed", "status", 400, "reason", "invalid discount type")
		return echo.NewHTTPError(http.StatusBadRequest, "invalid discount type")
	}
	if req.Amount < 0 || (req.DiscountType == models.CouponTypePercent && req.Amount > 100) {
		l.Warn("create_coupon_failed", "status", 400, "reason", "invalid amount")
		return echo.NewHTTPError(http.StatusBadRequest, "invalid amount")
	}

	status := req.Status
	if status == "" {
		status = models.CouponStatusPublish
	}

	cpn := models.Coupon{
		Code:              req.Code,
		DiscountType:      req.DiscountType,
		Amount:            req.Amount,
		UsageLimit:        req.UsageLimit,
		UsageLimitPerUser: req.UsageLimitPerUser,
		MinimumAmount:     req.MinimumAmount,
		MaximumAmount:     req.MaximumAmount,
		DateExpires:       req.DateExpires,
		Status:            status,
	}
	if err := h.DB.WithContext(ctx).Create(&cpn).Error; err != nil {
		l.Error("create_coupon_failed", "status", 500, "reason", "cannot create coupon", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot create coupon")
	}

	l.Info("create_coupon_success", "coupon_id", cpn.ID, "code", cpn.Code)
	return respond(c, http.StatusCreated, cpn)
}

func (h *CouponHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "coupon.update")

	id, err := parseID(c)
	if err != nil {
		return err
	}

	var req couponRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("update_coupon_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	var cpn models.Coupon
	if err := h.DB.WithContext(ctx).First(&cpn, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("update_coupon_failed", "status", 404, "reason", "coupon not found")
			return echo.NewHTTPError(http.StatusNotFound, "coupon not found")
		}
		l.Error("update_coupon_failed", "status", 500, "reason", "db error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot load coupon")
	}

	if req.DiscountType != "" && !validCouponType(req.DiscountType) {
		l.Warn("update_coupon_failed", "status", 400, "reason", "invalid discount type")
		return echo.NewHTTPError(http.StatusBadRequest, "invalid discount type")
	}

	if req.Code != "" {
		cpn.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	}
	if req.DiscountType != "" {
		cpn.DiscountType = req.DiscountType
	}
	cpn.Amount = req.Amount
	cpn.UsageLimit = req.UsageLimit
	cpn.UsageLimitPerUser = req.UsageLimitPerUser
	cpn.MinimumAmount = req.MinimumAmount
	cpn.MaximumAmount = req.MaximumAmount
	cpn.DateExpires = req.DateExpires
	if req.Status != "" {
		cpn.Status = req.Status
	}

	if err := h.DB.WithContext(ctx).Save(&cpn).Error; err != nil {
		l.Error("update_coupon_failed", "status", 500, "reason", "cannot save coupon", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot save coupon")
	}

	l.Info("update_coupon_success", "coupon_id", cpn.ID)
	return respond(c, http.StatusOK, cpn)
}

func (h *CouponHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "coupon.delete")

	id, err := parseID(c)
	if err != nil {
		return err
	}

	res := h.DB.WithContext(ctx).Delete(&models.Coupon{}, id)
	if res.Error != nil {
		l.Error("delete_coupon_failed", "status", 500, "reason", "cannot delete coupon", "error", res.Error)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot delete coupon")
	}
	if res.RowsAffected == 0 {
		l.Warn("delete_coupon_failed", "status", 404, "reason", "coupon not found")
		return echo.NewHTTPError(http.StatusNotFound, "coupon not found")
	}

	l.Info("delete_coupon_success", "coupon_id", id)
	return c.NoContent(http.StatusNoContent)
}

// Validate runs the read-only coupon check used by the order form. The
// result is always 200; rejection reasons travel in the payload.
func (h *CouponHandler) Validate(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "coupon.validate")

	code := c.Param("code")
	subtotal, err := strconv.ParseFloat(c.QueryParam("subtotal"), 64)
	if err != nil || subtotal < 0 {
		l.Warn("validate_coupon_failed", "status", 400, "reason", "invalid subtotal")
		return echo.NewHTTPError(http.StatusBadRequest, "subtotal must be a non-negative number")
	}
	userID := uint(parseIntDefault(c.QueryParam("userId"), 0))

	result, err := h.Coupons.Validate(ctx, code, subtotal, userID, nil)
	if err != nil {
		l.Error("validate_coupon_failed", "status", 500, "reason", "db error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot validate coupon")
	}

	l.Info("validate_coupon_success", "code", code, "is_valid", result.IsValid)
	return respond(c, http.StatusOK, result)
}

// Stats aggregates redemption counts and discount totals per coupon.
func (h *CouponHandler) Stats(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "coupon.stats")

	var coupons []models.Coupon
	if err := h.DB.WithContext(ctx).Order("id ASC").Find(&coupons).Error; err != nil {
		l.Error("coupon_stats_failed", "status", 500, "reason", "cannot list coupons", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list coupons")
	}

	type couponStat struct {
		CouponID      uint    `json:"coupon_id"`
		Code          string  `json:"code"`
		Status        string  `json:"status"`
		UsageCount    int     `json:"usage_count"`
		UsageLimit    int     `json:"usage_limit"`
		Redemptions   int64   `json:"redemptions"`
		DiscountTotal float64 `json:"discount_total"`
	}

	active := 0
	stats := make([]couponStat, 0, len(coupons))
	for _, cpn := range coupons {
		if cpn.Status == models.CouponStatusPublish {
			active++
		}
		var redemptions int64
		var discountTotal float64
		row := h.DB.WithContext(ctx).Model(&models.CouponRedemption{}).
			Where("coupon_id = ?", cpn.ID).
			Select("COUNT(*) AS redemptions, COALESCE(SUM(amount), 0) AS discount_total").
			Row()
		if err := row.Scan(&redemptions, &discountTotal); err != nil {
			l.Error("coupon_stats_failed", "status", 500, "reason", "cannot aggregate redemptions", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot aggregate coupon stats")
		}
		stats = append(stats, couponStat{
			CouponID:      cpn.ID,
			Code:          cpn.Code,
			Status:        cpn.Status,
			UsageCount:    cpn.UsageCount,
			UsageLimit:    cpn.UsageLimit,
			Redemptions:   redemptions,
			DiscountTotal: pricing.Round2(discountTotal),
		})
	}

	l.Info("coupon_stats_success")
	return respond(c, http.StatusOK, map[string]any{
		"total_coupons":  len(coupons),
		"active_coupons": active,
		"coupons":        stats,
	})
}

// Debug dumps raw coupon rows with the server clock, for support diagnosis
// of expiry and limit disputes.
func (h *CouponHandler) Debug(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "coupon.debug")

	var coupons []models.Coupon
	if err := h.DB.WithContext(ctx).Order("id ASC").Find(&coupons).Error; err != nil {
		l.Error("coupon_debug_failed", "status", 500, "reason", "cannot list coupons", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list coupons")
	}

	return respond(c, http.StatusOK, map[string]any{
		"server_time": time.Now().UTC(),
		"coupons":     coupons,
	})
}
