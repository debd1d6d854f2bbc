package handlers

import (
	"errors"
	"net/http"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/andesrent/rental-admin/internal/logging"
	"github.com/andesrent/rental-admin/internal/models"
	"github.com/andesrent/rental-admin/internal/service/search"
	"github.com/andesrent/rental-admin/internal/util"
)

type ProductHandler struct {
	DB    *gorm.DB
	ES    *elasticsearch.Client
	Index string
}

type productRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Stock       uint    `json:"stock"`
	CategoryID  *uint   `json:"category_id"`
	Active      *bool   `json:"active"`
}

// index mirrors the row into elasticsearch; never fails the caller.
func (h *ProductHandler) index(c echo.Context, p *models.Product) {
	if h.ES == nil {
		return
	}
	if err := search.IndexProduct(c.Request().Context(), h.ES, h.Index, p); err != nil {
		logging.FromContext(c.Request().Context()).Warn("product_index_failed", "product_id", p.ID, "error", err)
	}
}

func (h *ProductHandler) unindex(c echo.Context, id uint) {
	if h.ES == nil {
		return
	}
	if err := search.DeleteProduct(c.Request().Context(), h.ES, h.Index, id); err != nil {
		logging.FromContext(c.Request().Context()).Warn("product_unindex_failed", "product_id", id, "error", err)
	}
}

func (h *ProductHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.get")

	id, err := parseID(c)
	if err != nil {
		return err
	}

	var product models.Product
	if err := h.DB.WithContext(ctx).First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("get_product_failed", "status", 404, "reason", "product not found")
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		l.Error("get_product_failed", "status", 500, "reason", "db error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot load product")
	}

	return respond(c, http.StatusOK, product)
}

func (h *ProductHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.list")

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("limit"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	q := h.DB.WithContext(ctx).Model(&models.Product{})
	if s := c.QueryParam("search"); s != "" {
		q = q.Where("name LIKE ?", "%"+s+"%")
	}
	if cat := parseIntDefault(c.QueryParam("category_id"), 0); cat > 0 {
		q = q.Where("category_id = ?", cat)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		l.Error("list_products_failed", "status", 500, "reason", "cannot count products", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot count products")
	}

	var items []models.Product
	if err := q.Order("id ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		l.Error("list_products_failed", "status", 500, "reason", "cannot list products", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list products")
	}

	l.Info("list_products_success")
	return respondList(c, items, page, offset, limit, total)
}

func (h *ProductHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.create")

	var req productRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("create_product_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Name == "" {
		l.Warn("create_product_failed", "status", 400, "reason", "name required")
		return echo.NewHTTPError(http.StatusBadRequest, "name required")
	}
	if req.Price < 0 {
		l.Warn("create_product_failed", "status", 400, "reason", "negative price")
		return echo.NewHTTPError(http.StatusBadRequest, "price cannot be negative")
	}

	product := models.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		CategoryID:  req.CategoryID,
		Active:      true,
	}
	if req.Active != nil {
		product.Active = *req.Active
	}

	if err := h.DB.WithContext(ctx).Create(&product).Error; err != nil {
		l.Error("create_product_failed", "status", 500, "reason", "cannot create product", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot create product")
	}

	h.index(c, &product)
	l.Info("create_product_success", "product_id", product.ID)
	return respond(c, http.StatusCreated, product)
}

func (h *ProductHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.update")

	id, err := parseID(c)
	if err != nil {
		return err
	}

	var req productRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("update_product_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	var product models.Product
	if err := h.DB.WithContext(ctx).First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("update_product_failed", "status", 404, "reason", "product not found")
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		l.Error("update_product_failed", "status", 500, "reason", "db error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot load product")
	}

	if req.Price < 0 {
		l.Warn("update_product_failed", "status", 400, "reason", "negative price")
		return echo.NewHTTPError(http.StatusBadRequest, "price cannot be negative")
	}

	product.Name = req.Name
	product.Description = req.Description
	product.Price = req.Price
	product.Stock = req.Stock
	product.CategoryID = req.CategoryID
	if req.Active != nil {
		product.Active = *req.Active
	}

	if err := h.DB.WithContext(ctx).Save(&product).Error; err != nil {
		l.Error("update_product_failed", "status", 500, "reason", "cannot save product", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot save product")
	}

	h.index(c, &product)
	l.Info("update_product_success", "product_id", product.ID)
	return respond(c, http.StatusOK, product)
}

func (h *ProductHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.delete")

	id, err := parseID(c)
	if err != nil {
		return err
	}

	res := h.DB.WithContext(ctx).Delete(&models.Product{}, id)
	if res.Error != nil {
		l.Error("delete_product_failed", "status", 500, "reason", "cannot delete product", "error", res.Error)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot delete product")
	}
	if res.RowsAffected == 0 {
		l.Warn("delete_product_failed", "status", 404, "reason", "product not found")
		return echo.NewHTTPError(http.StatusNotFound, "product not found")
	}

	h.unindex(c, id)
	l.Info("delete_product_success", "product_id", id)
	return c.NoContent(http.StatusNoContent)
}

// Batch resolves a list of product ids, preserving the requested order and
// reporting the ids that do not exist.
func (h *ProductHandler) Batch(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.batch")

	var req struct {
		IDs []uint `json:"ids"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("batch_products_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if len(req.IDs) == 0 {
		l.Warn("batch_products_failed", "status", 400, "reason", "ids required")
		return echo.NewHTTPError(http.StatusBadRequest, "ids required")
	}

	var rows []models.Product
	if err := h.DB.WithContext(ctx).Where("id IN ?", req.IDs).Find(&rows).Error; err != nil {
		l.Error("batch_products_failed", "status", 500, "reason", "cannot load products", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot load products")
	}

	byID := make(map[uint]models.Product, len(rows))
	for _, p := range rows {
		byID[p.ID] = p
	}

	products := make([]models.Product, 0, len(req.IDs))
	missing := make([]uint, 0)
	seen := make(map[uint]bool, len(req.IDs))
	for _, id := range req.IDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if p, ok := byID[id]; ok {
			products = append(products, p)
		} else {
			missing = append(missing, id)
		}
	}

	l.Info("batch_products_success", "requested", len(req.IDs), "missing", len(missing))
	return respond(c, http.StatusOK, map[string]any{
		"products": products,
		"missing":  missing,
	})
}

// Search serves the admin search box from the elasticsearch index.
func (h *ProductHandler) Search(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.search")

	q := c.QueryParam("q")
	if q == "" {
		l.Warn("search_products_failed", "status", 400, "reason", "query required")
		return echo.NewHTTPError(http.StatusBadRequest, "query required")
	}
	if h.ES == nil {
		l.Error("search_products_failed", "status", 503, "reason", "search unavailable")
		return echo.NewHTTPError(http.StatusServiceUnavailable, "search unavailable")
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("limit"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	results, err := search.Products(ctx, h.ES, h.Index, q, offset, limit)
	if err != nil {
		l.Error("search_products_failed", "status", 500, "reason", "search error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "search error")
	}

	l.Info("search_products_success", "total", results.Total)
	return respondList(c, results.Items, page, offset, limit, results.Total)
}
