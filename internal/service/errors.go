package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSourcePhoto 请求和用户资料里都没有可用的人像照片
	ErrNoSourcePhoto = errors.New("no source photo")

	// ErrProviderDispatchFailed 任务没能交给渲染服务商
	ErrProviderDispatchFailed = errors.New("provider dispatch failed")

	// ErrProviderRenderFailed 服务商受理后渲染失败
	ErrProviderRenderFailed = errors.New("provider render failed")

	ErrSubjectNotFound = errors.New("subject not found")
	ErrLookNotFound    = fmt.Errorf("look: %w", ErrSubjectNotFound)
	ErrItemNotFound    = fmt.Errorf("catalog item: %w", ErrSubjectNotFound)
	ErrJobNotFound     = errors.New("job not found")
	ErrUserNotFound    = errors.New("user not found")

	ErrInvalidSourcePhoto  = errors.New("invalid source photo")
	ErrUnsupportedJobKind  = errors.New("unsupported job kind")
	ErrWebhookUnsupported  = errors.New("provider does not accept webhooks")
	ErrInvalidWebhookToken = errors.New("invalid webhook token")

	ErrInvalidWebhookPayload = errors.New("invalid webhook payload")
)

// jobError 生成写入任务记录的错误信息，前缀固定为错误分类
func jobError(kind error, detail string) string {
	if detail == "" {
		return kind.Error()
	}
	return fmt.Sprintf("%s: %s", kind.Error(), detail)
}
