package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"stylist/internal/entity"
	"stylist/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const maxWebhookBodyBytes = 1 << 20

// StartLookRender POST /api/looks/:id/render
func (h *HTTPHandler) StartLookRender(c *gin.Context) {
	h.startJob(c, entity.JobKindLookImage)
}

// StartItemTryOn POST /api/items/:id/try-on
func (h *HTTPHandler) StartItemTryOn(c *gin.Context) {
	h.startJob(c, entity.JobKindItemTryOn)
}

// GetLookRenderStatus GET /api/looks/:id/render
func (h *HTTPHandler) GetLookRenderStatus(c *gin.Context) {
	h.subjectStatus(c, entity.JobKindLookImage)
}

// GetItemTryOnStatus GET /api/items/:id/try-on
func (h *HTTPHandler) GetItemTryOnStatus(c *gin.Context) {
	h.subjectStatus(c, entity.JobKindItemTryOn)
}

// startJob 新建任务返回 202，复用已有任务返回 200
func (h *HTTPHandler) startJob(c *gin.Context, kind entity.JobKind) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "authentication required")
		return
	}
	subjectID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req entity.StartJobRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			InvalidPayload(c)
			return
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	handle, err := h.generation.StartJob(ctx, entity.JobSubject{
		Kind:      kind,
		SubjectID: subjectID,
		UserID:    user.ID,
	}, strings.TrimSpace(req.SourcePhoto))
	if err != nil {
		// 派发失败的任务已落库为 failed，把句柄一并返回
		if handle != nil && errors.Is(err, service.ErrProviderDispatchFailed) {
			ErrorResponseWithDetails(c, http.StatusBadGateway, ErrCodeDispatchFailed, "render could not be dispatched", handle)
			return
		}
		RespondServiceError(c, err)
		return
	}

	status := http.StatusOK
	if handle.Created {
		status = http.StatusAccepted
	}
	c.JSON(status, handle)
}

func (h *HTTPHandler) subjectStatus(c *gin.Context, kind entity.JobKind) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "authentication required")
		return
	}
	subjectID, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	view, err := h.generation.GetStatus(ctx, entity.JobSubject{
		Kind:      kind,
		SubjectID: subjectID,
		UserID:    user.ID,
	})
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetJob GET /api/jobs/:id
func (h *HTTPHandler) GetJob(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "authentication required")
		return
	}
	jobID, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	view, err := h.generation.GetJobStatus(ctx, jobID, user.ID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// RenderWebhook POST /api/webhooks/render/:provider
func (h *HTTPHandler) RenderWebhook(c *gin.Context) {
	providerName := strings.TrimSpace(c.Param("provider"))
	token := strings.TrimSpace(c.GetHeader("X-Webhook-Token"))
	if token == "" {
		token = strings.TrimSpace(c.Query("token"))
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		InvalidPayload(c)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	if err := h.generation.HandleWebhook(ctx, providerName, token, body); err != nil {
		logrus.WithError(err).WithField("provider", providerName).Warn("render webhook rejected")
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// PollRenderJobs POST /api/admin/render/poll，手动触发一轮状态轮询
func (h *HTTPHandler) PollRenderJobs(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
	defer cancel()

	if err := h.generation.PollProcessingJobs(ctx); err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
