package api

import (
	"io"
	"net/http"
	"time"

	"stylist/internal/entity"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const sseHeartbeatInterval = 15 * time.Second

type sseMessage struct {
	event string
	data  interface{}
}

func (h *HTTPHandler) registerSSEClient(userID uint, ch chan sseMessage) {
	h.sseMu.Lock()
	defer h.sseMu.Unlock()
	h.sseClients[userID] = append(h.sseClients[userID], ch)
}

func (h *HTTPHandler) unregisterSSEClient(userID uint, target chan sseMessage) {
	h.sseMu.Lock()
	defer h.sseMu.Unlock()

	current := h.sseClients[userID]
	remaining := current[:0]
	for _, ch := range current {
		if ch != target {
			remaining = append(remaining, ch)
		}
	}
	if len(remaining) == 0 {
		delete(h.sseClients, userID)
		return
	}
	h.sseClients[userID] = remaining
}

func (h *HTTPHandler) publishSSEMessage(userID uint, msg sseMessage) {
	h.sseMu.Lock()
	channels := append([]chan sseMessage(nil), h.sseClients[userID]...)
	h.sseMu.Unlock()

	for _, ch := range channels {
		select {
		case ch <- msg:
		default:
			logrus.WithFields(logrus.Fields{
				"user_id": userID,
				"event":   msg.event,
			}).Warn("dropping sse message due to slow consumer")
		}
	}
}

// notifyJobUpdated 事件总线回调
func (h *HTTPHandler) notifyJobUpdated(event entity.JobEvent) {
	if event.UserID == 0 {
		return
	}
	h.publishSSEMessage(event.UserID, sseMessage{event: "job_updated", data: event})
}

// StreamJobEvents GET /api/events
func (h *HTTPHandler) StreamJobEvents(c *gin.Context) {
	requestUser := CurrentUser(c)
	if requestUser == nil {
		Unauthorized(c, "authentication required")
		return
	}

	ctx := c.Request.Context()
	messages := make(chan sseMessage, 16)
	h.registerSSEClient(requestUser.ID, messages)
	defer h.unregisterSSEClient(requestUser.ID, messages)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	if flusher, ok := c.Writer.(http.Flusher); ok {
		flusher.Flush()
	}

	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	logrus.WithField("user_id", requestUser.ID).Info("job sse connected")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			logrus.WithField("user_id", requestUser.ID).Info("job sse disconnected")
			return false
		case <-heartbeat.C:
			c.SSEvent("ping", gin.H{"ts": time.Now().UnixMilli()})
			return true
		case msg := <-messages:
			c.SSEvent(msg.event, msg.data)
			return true
		}
	})
}
