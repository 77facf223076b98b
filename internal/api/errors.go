package api

import (
	"errors"
	"net/http"

	"stylist/internal/composer"
	"stylist/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// 错误码定义
const (
	// 通用错误码
	ErrCodeInvalidRequest     = "ERR_INVALID_REQUEST"
	ErrCodeUnauthorized       = "ERR_UNAUTHORIZED"
	ErrCodeForbidden          = "ERR_FORBIDDEN"
	ErrCodeNotFound           = "ERR_NOT_FOUND"
	ErrCodeInternalError      = "ERR_INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "ERR_SERVICE_UNAVAILABLE"

	// 认证错误码
	ErrCodeInvalidCredentials = "ERR_INVALID_CREDENTIALS"
	ErrCodeEmailExists        = "ERR_EMAIL_EXISTS"
	ErrCodeUserDisabled       = "ERR_USER_DISABLED"
	ErrCodeSessionExpired     = "ERR_SESSION_EXPIRED"
	ErrCodeUserNotFound       = "ERR_USER_NOT_FOUND"

	// 资源错误码
	ErrCodeLookNotFound = "ERR_LOOK_NOT_FOUND"
	ErrCodeItemNotFound = "ERR_ITEM_NOT_FOUND"
	ErrCodeJobNotFound  = "ERR_JOB_NOT_FOUND"

	// 业务错误码
	ErrCodeMissingField         = "ERR_MISSING_FIELD"
	ErrCodeInsufficientCatalog  = "ERR_INSUFFICIENT_CATALOG"
	ErrCodeNoSourcePhoto        = "ERR_NO_SOURCE_PHOTO"
	ErrCodeDispatchFailed       = "ERR_DISPATCH_FAILED"
	ErrCodeWebhookRejected      = "ERR_WEBHOOK_REJECTED"
	ErrCodeUnsupportedOperation = "ERR_UNSUPPORTED_OPERATION"
)

// APIError 统一的 API 错误响应结构
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorResponse 返回统一格式的错误响应
func ErrorResponse(c *gin.Context, status int, code string, message string) {
	c.JSON(status, APIError{
		Code:    code,
		Message: message,
	})
}

// ErrorResponseWithDetails 返回带详情的错误响应
func ErrorResponseWithDetails(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, APIError{
		Code:    code,
		Message: message,
		Details: details,
	})
}

// BadRequest 400 错误请求
func BadRequest(c *gin.Context, code string, message string) {
	ErrorResponse(c, http.StatusBadRequest, code, message)
}

// Unauthorized 401 未授权
func Unauthorized(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// NotFound 404 资源不存在
func NotFound(c *gin.Context, code string, message string) {
	ErrorResponse(c, http.StatusNotFound, code, message)
}

// InternalError 500 服务器内部错误
func InternalError(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusInternalServerError, ErrCodeInternalError, message)
}

// MissingField 缺少必填字段
func MissingField(c *gin.Context, field string) {
	ErrorResponseWithDetails(c, http.StatusBadRequest, ErrCodeMissingField, field+" is required", gin.H{"field": field})
}

// InvalidPayload 无效的请求体
func InvalidPayload(c *gin.Context) {
	ErrorResponse(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request payload")
}

// serviceErrors 按顺序匹配，ErrLookNotFound 需排在 ErrSubjectNotFound 之前
var serviceErrors = []struct {
	target  error
	status  int
	code    string
	message string
}{
	{composer.ErrInsufficientCatalog, http.StatusUnprocessableEntity, ErrCodeInsufficientCatalog, "not enough catalog items match this profile"},
	{service.ErrNoSourcePhoto, http.StatusUnprocessableEntity, ErrCodeNoSourcePhoto, "upload a source photo first"},
	{service.ErrLookNotFound, http.StatusNotFound, ErrCodeLookNotFound, "look not found"},
	{service.ErrItemNotFound, http.StatusNotFound, ErrCodeItemNotFound, "catalog item not found"},
	{service.ErrSubjectNotFound, http.StatusNotFound, ErrCodeNotFound, "subject not found"},
	{service.ErrJobNotFound, http.StatusNotFound, ErrCodeJobNotFound, "job not found"},
	{service.ErrUserNotFound, http.StatusNotFound, ErrCodeUserNotFound, "user not found"},
	{service.ErrProviderDispatchFailed, http.StatusBadGateway, ErrCodeDispatchFailed, "render could not be dispatched"},
	{service.ErrInvalidWebhookToken, http.StatusUnauthorized, ErrCodeWebhookRejected, "invalid webhook token"},
	{service.ErrInvalidWebhookPayload, http.StatusBadRequest, ErrCodeWebhookRejected, "webhook payload could not be parsed"},
	{service.ErrWebhookUnsupported, http.StatusNotFound, ErrCodeUnsupportedOperation, "webhooks are not supported for this provider"},
	{service.ErrInvalidSourcePhoto, http.StatusBadRequest, ErrCodeInvalidRequest, "source photo must be an image URL or base64 payload"},
	{service.ErrUnsupportedJobKind, http.StatusBadRequest, ErrCodeUnsupportedOperation, "unsupported job kind"},
}

// RespondServiceError 把服务层错误映射为 APIError，未识别的错误按 500 处理
func RespondServiceError(c *gin.Context, err error) {
	for _, candidate := range serviceErrors {
		if errors.Is(err, candidate.target) {
			ErrorResponse(c, candidate.status, candidate.code, candidate.message)
			return
		}
	}
	logrus.WithError(err).WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.FullPath(),
	}).Error("request failed")
	InternalError(c, "internal server error")
}
