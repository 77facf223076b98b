package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// NewServeMux registers the render task handlers.
func NewServeMux(p Processor) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeRenderDispatch, func(ctx context.Context, t *asynq.Task) error {
		return HandleRenderDispatch(ctx, t, p)
	})
	mux.HandleFunc(TypeRenderPoll, func(ctx context.Context, t *asynq.Task) error {
		return p.PollProcessingJobs(ctx)
	})
	return mux
}

func HandleRenderDispatch(ctx context.Context, t *asynq.Task, p Processor) error {
	var payload RenderDispatchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		// 负载损坏重试无意义
		return fmt.Errorf("decode %s payload: %v: %w", TypeRenderDispatch, err, asynq.SkipRetry)
	}
	if payload.JobID == 0 {
		return fmt.Errorf("%s payload without job id: %w", TypeRenderDispatch, asynq.SkipRetry)
	}
	logrus.WithField("job_id", payload.JobID).Debug("handling render dispatch")
	return p.ProcessDispatch(ctx, payload.JobID)
}

// RegisterPollSchedule adds the periodic provider poll to scheduler.
func RegisterPollSchedule(scheduler *asynq.Scheduler, interval time.Duration) (string, error) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	spec := fmt.Sprintf("@every %s", interval)
	return scheduler.Register(spec, NewRenderPollTask(),
		asynq.Queue(QueueRender),
		asynq.Unique(interval),
		asynq.MaxRetry(0),
	)
}

// RunPollLoop polls on a ticker in the API process when no worker runs.
func RunPollLoop(ctx context.Context, p Processor, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.PollProcessingJobs(ctx); err != nil {
				logrus.WithError(err).Warn("render poll failed")
			}
		}
	}
}
