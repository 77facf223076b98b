package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"stylist/internal/composer"
	"stylist/internal/service"

	"github.com/gin-gonic/gin"
)

func TestRespondServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "目录不足",
			err:            fmt.Errorf("compose: %w", composer.ErrInsufficientCatalog),
			expectedStatus: http.StatusUnprocessableEntity,
			expectedCode:   ErrCodeInsufficientCatalog,
		},
		{
			name:           "缺少人像照片",
			err:            service.ErrNoSourcePhoto,
			expectedStatus: http.StatusUnprocessableEntity,
			expectedCode:   ErrCodeNoSourcePhoto,
		},
		{
			name:           "look 不存在",
			err:            service.ErrLookNotFound,
			expectedStatus: http.StatusNotFound,
			expectedCode:   ErrCodeLookNotFound,
		},
		{
			name:           "商品不存在",
			err:            service.ErrItemNotFound,
			expectedStatus: http.StatusNotFound,
			expectedCode:   ErrCodeItemNotFound,
		},
		{
			name:           "任务不存在",
			err:            service.ErrJobNotFound,
			expectedStatus: http.StatusNotFound,
			expectedCode:   ErrCodeJobNotFound,
		},
		{
			name:           "派发失败",
			err:            fmt.Errorf("%w: queue down", service.ErrProviderDispatchFailed),
			expectedStatus: http.StatusBadGateway,
			expectedCode:   ErrCodeDispatchFailed,
		},
		{
			name:           "回调令牌错误",
			err:            service.ErrInvalidWebhookToken,
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   ErrCodeWebhookRejected,
		},
		{
			name:           "未知错误",
			err:            errors.New("db down"),
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   ErrCodeInternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/api/test", nil)

			RespondServiceError(c, tt.err)

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			var response APIError
			if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if response.Code != tt.expectedCode {
				t.Errorf("expected code %s, got %s", tt.expectedCode, response.Code)
			}
			if response.Message == "" {
				t.Error("expected a message")
			}
		})
	}
}

func TestMissingFieldCarriesDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	MissingField(c, "occasion")

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
	var response struct {
		Code    string            `json:"code"`
		Details map[string]string `json:"details"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if response.Code != ErrCodeMissingField || response.Details["field"] != "occasion" {
		t.Errorf("unexpected response %+v", response)
	}
}
