package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"stylist/internal/entity"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const maxCatalogPageSize = 200

// ListCatalogItems GET /api/catalog/items
func (h *HTTPHandler) ListCatalogItems(c *gin.Context) {
	query := entity.CatalogQuery{ActiveOnly: true, Limit: maxCatalogPageSize}

	if raw := strings.TrimSpace(c.Query("category")); raw != "" {
		category, ok := entity.ParseCategory(raw)
		if !ok {
			BadRequest(c, ErrCodeInvalidRequest, "unknown category")
			return
		}
		query.Category = category
	}
	if raw := strings.TrimSpace(c.Query("gender")); raw != "" {
		gender := entity.ParseGender(raw)
		if gender == entity.GenderUnspecified {
			BadRequest(c, ErrCodeInvalidRequest, "unknown gender")
			return
		}
		query.Gender = gender
	}
	if raw := strings.TrimSpace(c.Query("budget")); raw != "" {
		tier := entity.ParseBudgetTier(raw)
		if tier == entity.BudgetUnspecified {
			BadRequest(c, ErrCodeInvalidRequest, "unknown budget tier")
			return
		}
		query = query.WithBudget(tier)
	}
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			BadRequest(c, ErrCodeInvalidRequest, "limit must be a positive integer")
			return
		}
		query.Limit = min(limit, maxCatalogPageSize)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	items, err := h.catalog.QueryItems(ctx, query)
	if err != nil {
		logrus.WithError(err).Error("failed to query catalog")
		InternalError(c, "failed to load catalog")
		return
	}
	if items == nil {
		items = []entity.DbCatalogItem{}
	}
	c.JSON(http.StatusOK, entity.CatalogListResponse{Items: items})
}
