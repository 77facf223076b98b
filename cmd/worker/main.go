package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"stylist/internal/app"
	"stylist/internal/config"
	"stylist/internal/queue"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// worker 消费 render 队列，并按固定间隔调度服务商轮询
func main() {
	cfg, err := config.ParseConfig()
	if err != nil {
		logrus.WithError(err).Error("Failed to parse config")
		return
	}
	flush := app.SetupLogging(cfg)
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg.DispatchMode = config.DispatchModeAsynq
	a, err := app.New(ctx, cfg)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise app")
		return
	}
	defer a.Close()

	concurrency := cfg.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	srv := asynq.NewServer(a.AsynqRedisOpt(), asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queue.QueueRender: 1},
	})

	scheduler := asynq.NewScheduler(a.AsynqRedisOpt(), &asynq.SchedulerOpts{
		LogLevel: asynq.WarnLevel,
	})
	entryID, err := queue.RegisterPollSchedule(scheduler, cfg.PollInterval())
	if err != nil {
		logrus.WithError(err).Error("failed to register render poll schedule")
		return
	}
	logrus.WithFields(logrus.Fields{
		"entry_id": entryID,
		"interval": cfg.PollInterval().String(),
	}).Info("registered render poll schedule")

	if err := scheduler.Start(); err != nil {
		logrus.WithError(err).Error("failed to start scheduler")
		return
	}
	defer scheduler.Shutdown()

	if err := srv.Start(queue.NewServeMux(a.Generation)); err != nil {
		logrus.WithError(err).Error("failed to start asynq server")
		return
	}
	logrus.WithField("concurrency", concurrency).Info("render worker started")

	<-ctx.Done()
	srv.Shutdown()
	logrus.Info("render worker stopped")
}
