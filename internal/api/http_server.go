package api

import (
	"context"
	"errors"
	"sync"

	"stylist/internal/auth"
	"stylist/internal/catalog"
	"stylist/internal/config"
	"stylist/internal/events"
	"stylist/internal/model"
	"stylist/internal/service"
)

// Services 是 HTTP 层依赖的业务服务
type Services struct {
	Profiles   *service.ProfileService
	Looks      *service.LookService
	Generation *service.GenerationService
	Catalog    catalog.Catalog
}

// HTTPHandler HTTP 请求处理器
type HTTPHandler struct {
	cfg         config.Config
	repo        model.Repository
	authManager *auth.Manager

	profiles   *service.ProfileService
	looks      *service.LookService
	generation *service.GenerationService
	catalog    catalog.Catalog

	// SSE 客户端按用户分组
	sseClients map[uint][]chan sseMessage
	sseMu      sync.Mutex
}

// NewHTTPHandler 创建 HTTP 处理器实例
func NewHTTPHandler(cfg config.Config, repo model.Repository, services Services) (*HTTPHandler, error) {
	if services.Profiles == nil || services.Looks == nil || services.Generation == nil || services.Catalog == nil {
		return nil, errors.New("http handler requires every service")
	}
	authManager, err := auth.NewManagerFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &HTTPHandler{
		cfg:         cfg,
		repo:        repo,
		authManager: authManager,
		profiles:    services.Profiles,
		looks:       services.Looks,
		generation:  services.Generation,
		catalog:     services.Catalog,
		sseClients:  make(map[uint][]chan sseMessage),
	}, nil
}

// StartEventForwarder 把任务事件转发给对应用户的 SSE 连接，直到 ctx 结束
func (h *HTTPHandler) StartEventForwarder(ctx context.Context, bus events.Bus) error {
	return bus.StartForwarder(ctx, h.notifyJobUpdated)
}
