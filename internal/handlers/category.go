package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/andesrent/rental-admin/internal/logging"
	"github.com/andesrent/rental-admin/internal/models"
	"github.com/andesrent/rental-admin/internal/util"
)

type CategoryHandler struct {
	DB *gorm.DB
}

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ParentID    *uint  `json:"parent_id"`
}

func (h *CategoryHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "category.list")

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("limit"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	q := h.DB.WithContext(ctx).Model(&models.Category{})
	if search := c.QueryParam("search"); search != "" {
		q = q.Where("name LIKE ?", "%"+search+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		l.Error("list_categories_failed", "status", 500, "reason", "cannot count categories", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot count categories")
	}

	var items []models.Category
	if err := q.Order("id ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		l.Error("list_categories_failed", "status", 500, "reason", "cannot list categories", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list categories")
	}

	l.Info("list_categories_success")
	return respondList(c, items, page, offset, limit, total)
}

func (h *CategoryHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "category.create")

	var req categoryRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("create_category_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Name == "" {
		l.Warn("create_category_failed", "status", 400, "reason", "name required")
		return echo.NewHTTPError(http.StatusBadRequest, "name required")
	}
	if req.ParentID != nil {
		if err := h.DB.WithContext(ctx).First(&models.Category{}, *req.ParentID).Error; err != nil {
			l.Warn("create_category_failed", "status", 400, "reason", "parent not found", "error", err)
			return echo.NewHTTPError(http.StatusBadRequest, "parent category not found")
		}
	}

	cat := models.Category{Name: req.Name, Description: req.Description, ParentID: req.ParentID}
	if err := h.DB.WithContext(ctx).Create(&cat).Error; err != nil {
		l.Error("create_category_failed", "status", 500, "reason", "cannot create category", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot create category")
	}

	l.Info("create_category_success", "category_id", cat.ID)
	return respond(c, http.StatusCreated, cat)
}

func (h *CategoryHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "category.update")

	id, err := parseID(c)
	if err != nil {
		l.Warn("update_category_failed", "status", 400, "reason", "bad id")
		return err
	}

	var req categoryRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("update_category_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	var cat models.Category
	if err := h.DB.WithContext(ctx).First(&cat, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("update_category_failed", "status", 404, "reason", "category not found")
			return echo.NewHTTPError(http.StatusNotFound, "category not found")
		}
		l.Error("update_category_failed", "status", 500, "reason", "db error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot load category")
	}

	if req.ParentID != nil {
		if err := h.checkParent(c, id, *req.ParentID); err != nil {
			l.Warn("update_category_failed", "status", 400, "reason", "invalid parent", "error", err)
			return err
		}
	}

	cat.Name = req.Name
	cat.Description = req.Description
	cat.ParentID = req.ParentID
	if err := h.DB.WithContext(ctx).Save(&cat).Error; err != nil {
		l.Error("update_category_failed", "status", 500, "reason", "cannot save category", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot save category")
	}

	l.Info("update_category_success", "category_id", cat.ID)
	return respond(c, http.StatusOK, cat)
}

// checkParent rejects self-parenting and parent chains that loop back to id.
func (h *CategoryHandler) checkParent(c echo.Context, id, parentID uint) error {
	ctx := c.Request().Context()
	if parentID == id {
		return echo.NewHTTPError(http.StatusBadRequest, "category cannot be its own parent")
	}

	current := parentID
	for depth := 0; depth < 32 && current != 0; depth++ {
		var parent models.Category
		if err := h.DB.WithContext(ctx).First(&parent, current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return echo.NewHTTPError(http.StatusBadRequest, "parent category not found")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot load parent category")
		}
		if parent.ParentID == nil {
			return nil
		}
		if *parent.ParentID == id {
			return echo.NewHTTPError(http.StatusBadRequest, "category parent would create a cycle")
		}
		current = *parent.ParentID
	}
	return nil
}

func (h *CategoryHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "category.delete")

	id, err := parseID(c)
	if err != nil {
		l.Warn("delete_category_failed", "status", 400, "reason", "bad id")
		return err
	}

	res := h.DB.WithContext(ctx).Delete(&models.Category{}, id)
	if res.Error != nil {
		l.Error("delete_category_failed", "status", 500, "reason", "cannot delete category", "error", res.Error)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot delete category")
	}
	if res.RowsAffected == 0 {
		l.Warn("delete_category_failed", "status", 404, "reason", "category not found")
		return echo.NewHTTPError(http.StatusNotFound, "category not found")
	}

	// orphaned children move to top level
	if err := h.DB.WithContext(ctx).Model(&models.Category{}).
		Where("parent_id = ?", id).Update("parent_id", nil).Error; err != nil {
		l.Error("delete_category_failed", "status", 500, "reason", "cannot detach children", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot detach child categories")
	}

	l.Info("delete_category_success", "category_id", id)
	return c.NoContent(http.StatusNoContent)
}
