package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stylist/internal/api"
	"stylist/internal/app"
	"stylist/internal/config"
	"stylist/internal/queue"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

func main() {
	// 初始化配置
	cfg, err := config.ParseConfig()
	if err != nil {
		logrus.WithError(err).Error("Failed to parse config")
		return
	}
	flush := app.SetupLogging(cfg)
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise app")
		return
	}
	defer a.Close()

	if a.UsesAsynq() {
		client := asynq.NewClient(a.AsynqRedisOpt())
		defer client.Close()
		dispatcher, err := queue.NewAsynqDispatcher(client)
		if err != nil {
			logrus.WithError(err).Error("failed to initialise asynq dispatcher")
			return
		}
		a.Generation.SetDispatcher(dispatcher)
	} else {
		// 没有 worker 时由 API 进程自己轮询服务商
		go queue.RunPollLoop(ctx, a.Generation, cfg.PollInterval())
	}

	httpHandler, err := api.NewHTTPHandler(cfg, a.Repo, api.Services{
		Profiles:   a.Profiles,
		Looks:      a.Looks,
		Generation: a.Generation,
		Catalog:    a.Catalog,
	})
	if err != nil {
		logrus.WithError(err).Error("failed to initialise http handler")
		return
	}
	if err := httpHandler.StartEventForwarder(ctx, a.Bus); err != nil {
		logrus.WithError(err).Error("failed to start event forwarder")
		return
	}

	// 设置Gin模式
	gin.SetMode(gin.ReleaseMode)
	r := api.NewRouter(httpHandler, a.Storage)

	serverHost := fmt.Sprintf("0.0.0.0:%s", cfg.HTTPPort)
	httpServer := &http.Server{
		Addr:        serverHost,
		Handler:     r,
		ReadTimeout: 60 * time.Second,
		// SSE 连接长时间保持，不设置写超时
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Warn("http server shutdown")
		}
	}()

	logrus.WithField("host", serverHost).Info("服务器启动")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logrus.WithError(err).Error("服务器启动失败")
	}
}
