// Package app wires configuration into the services shared by the API server
// and the render worker.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"stylist/internal/catalog"
	"stylist/internal/composer"
	"stylist/internal/config"
	"stylist/internal/events"
	"stylist/internal/locker"
	"stylist/internal/model"
	"stylist/internal/render"
	"stylist/internal/service"
	"stylist/internal/storage"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type App struct {
	Config  config.Config
	Repo    model.Repository
	Storage storage.Storage
	Catalog catalog.Catalog

	Profiles   *service.ProfileService
	Looks      *service.LookService
	Generation *service.GenerationService

	Bus   events.Bus
	Redis goredis.UniversalClient
}

// SetupLogging 配置全局 logrus 和可选的 sentry 上报，返回的函数在退出前调用
func SetupLogging(cfg config.Config) func() {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	level, err := logrus.ParseLevel(strings.TrimSpace(cfg.LogLevel))
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if strings.TrimSpace(cfg.SentryDSN) == "" {
		return func() {}
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: cfg.Environment,
	}); err != nil {
		logrus.WithError(err).Warn("sentry init failed")
		return func() {}
	}
	return func() { sentry.Flush(2 * time.Second) }
}

// New 初始化仓储、存储、目录、渲染服务商和业务服务
func New(ctx context.Context, cfg config.Config) (*App, error) {
	repo, err := model.InitRepository(&cfg)
	if err != nil {
		return nil, fmt.Errorf("init repository: %w", err)
	}
	if cfg.SeedDemoCatalog {
		if err := model.SeedDemoCatalog(ctx, repo); err != nil {
			logrus.WithError(err).Warn("failed to seed demo catalog")
		}
	}

	store, err := storage.NewStorage(cfg)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	resolver := storage.NewURLResolver(cfg.StoragePublicBaseURL)

	items, err := catalog.NewCachedCatalog(catalog.NewRepositoryCatalog(repo), cfg.CatalogCacheTTL())
	if err != nil {
		return nil, err
	}

	provider, err := render.NewProvider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init render provider: %w", err)
	}

	profiles := service.NewProfileService(repo, store, resolver)
	a := &App{
		Config:     cfg,
		Repo:       repo,
		Storage:    store,
		Catalog:    items,
		Profiles:   profiles,
		Looks:      service.NewLookService(repo, profiles, composer.New(items)),
		Generation: service.NewGenerationService(repo, provider, store, resolver, service.NewGenerationConfig(cfg)),
	}

	if err := a.setupRedis(); err != nil {
		return nil, err
	}
	a.Generation.SetEventBus(a.Bus)

	if strings.TrimSpace(cfg.RenderWebhookURL) != "" && strings.TrimSpace(cfg.RenderWebhookSecret) == "" {
		logrus.Warn("RENDER_WEBHOOK_URL is set without RENDER_WEBHOOK_SECRET, webhooks are disabled and jobs finish by polling")
	}

	logrus.WithFields(logrus.Fields{
		"provider":      provider.Name(),
		"dispatch_mode": cfg.DispatchMode,
		"redis":         a.Redis != nil,
	}).Info("app initialised")
	return a, nil
}

// setupRedis 配置了 REDIS_ADDR 时使用 redis 锁和事件总线，否则退回进程内实现
func (a *App) setupRedis() error {
	if strings.TrimSpace(a.Config.RedisAddr) == "" {
		if a.UsesAsynq() {
			return errors.New("asynq dispatch mode requires REDIS_ADDR")
		}
		a.Bus = events.NewLocalBus()
		return nil
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     a.Config.RedisAddr,
		Password: a.Config.RedisPassword,
		DB:       a.Config.RedisDB,
	})
	bus, err := events.NewRedisBus(rdb, a.Config.RedisEventChannel)
	if err != nil {
		_ = rdb.Close()
		return fmt.Errorf("init redis event bus: %w", err)
	}
	lock, err := locker.NewRedisLocker(rdb, "", 0)
	if err != nil {
		_ = rdb.Close()
		return err
	}
	a.Redis = rdb
	a.Bus = bus
	a.Generation.SetLocker(lock)
	return nil
}

func (a *App) UsesAsynq() bool {
	return strings.EqualFold(strings.TrimSpace(a.Config.DispatchMode), config.DispatchModeAsynq)
}

// AsynqRedisOpt asynq 与事件总线共用同一个 redis
func (a *App) AsynqRedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     a.Config.RedisAddr,
		Password: a.Config.RedisPassword,
		DB:       a.Config.RedisDB,
	}
}

func (a *App) Close() error {
	var errs []error
	if a.Bus != nil {
		errs = append(errs, a.Bus.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	return errors.Join(errs...)
}
