package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"stylist/internal/entity"

	"github.com/gin-gonic/gin"
)

// ComposeLook POST /api/looks
func (h *HTTPHandler) ComposeLook(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "authentication required")
		return
	}

	var req entity.ComposeLookRequest
	// 请求体可以为空，此时使用资料中的场合
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			InvalidPayload(c)
			return
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	created, err := h.looks.ComposeLook(ctx, user.ID, req.Occasion)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// ListLooks GET /api/looks
func (h *HTTPHandler) ListLooks(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "authentication required")
		return
	}

	var params entity.BaseParams
	if err := c.ShouldBindQuery(&params); err != nil {
		BadRequest(c, ErrCodeInvalidRequest, "invalid query parameters")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	looks, meta, err := h.looks.ListLooks(ctx, user.ID, params)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	if looks == nil {
		looks = []entity.DbLook{}
	}
	c.JSON(http.StatusOK, entity.LookListResponse{Looks: looks, Meta: meta})
}

// GetLook GET /api/looks/:id
func (h *HTTPHandler) GetLook(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "authentication required")
		return
	}

	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	record, err := h.looks.GetLook(ctx, id, user.ID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// pathID 解析路径中的正整数 ID，失败时已写入 400 响应
func pathID(c *gin.Context, name string) (uint, bool) {
	value, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || value == 0 {
		BadRequest(c, ErrCodeInvalidRequest, "invalid "+name)
		return 0, false
	}
	return uint(value), true
}
