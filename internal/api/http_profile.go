package api

import (
	"context"
	"net/http"
	"time"

	"stylist/internal/entity"

	"github.com/gin-gonic/gin"
)

// UpdateProfile PATCH /api/me/profile
func (h *HTTPHandler) UpdateProfile(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "authentication required")
		return
	}

	var req entity.ProfileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	// 上传照片可能需要写入远端存储
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	updated, err := h.profiles.UpdateProfile(ctx, user.ID, req)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, makeUserSummary(updated))
}
