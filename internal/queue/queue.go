// Package queue moves render dispatch and provider polling off the request
// path, either onto goroutines or onto asynq workers.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

const (
	TypeRenderDispatch = "render:dispatch"
	TypeRenderPoll     = "render:poll"

	QueueRender = "render"
)

// Processor is the work the queue drives.
type Processor interface {
	ProcessDispatch(ctx context.Context, jobID uint) error
	PollProcessingJobs(ctx context.Context) error
}

// Dispatcher schedules the provider hand-off for a freshly created job.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID uint) error
}

type RenderDispatchPayload struct {
	JobID uint `json:"job_id"`
}

func NewRenderDispatchTask(jobID uint) (*asynq.Task, error) {
	if jobID == 0 {
		return nil, errors.New("job id required")
	}
	payload, err := json.Marshal(RenderDispatchPayload{JobID: jobID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeRenderDispatch, payload), nil
}

func NewRenderPollTask() *asynq.Task {
	return asynq.NewTask(TypeRenderPoll, nil)
}

// InlineDispatcher runs dispatch on a goroutine in the API process.
type InlineDispatcher struct {
	mu        sync.RWMutex
	processor Processor
	timeout   time.Duration
	wg        sync.WaitGroup
}

func NewInlineDispatcher(timeout time.Duration) *InlineDispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &InlineDispatcher{timeout: timeout}
}

// Bind sets the processor. The service depends on the dispatcher, so the two
// are wired after construction.
func (d *InlineDispatcher) Bind(p Processor) {
	d.mu.Lock()
	d.processor = p
	d.mu.Unlock()
}

func (d *InlineDispatcher) Dispatch(_ context.Context, jobID uint) error {
	d.mu.RLock()
	p := d.processor
	d.mu.RUnlock()
	if p == nil {
		return errors.New("inline dispatcher has no processor")
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		// 请求上下文结束后任务仍需继续
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := p.ProcessDispatch(ctx, jobID); err != nil {
			logrus.WithError(err).WithField("job_id", jobID).Error("inline render dispatch failed")
		}
	}()
	return nil
}

// Wait blocks until every dispatched goroutine has returned.
func (d *InlineDispatcher) Wait() {
	d.wg.Wait()
}

// AsynqDispatcher enqueues a render:dispatch task per job.
type AsynqDispatcher struct {
	client *asynq.Client
}

func NewAsynqDispatcher(client *asynq.Client) (*AsynqDispatcher, error) {
	if client == nil {
		return nil, errors.New("asynq client required")
	}
	return &AsynqDispatcher{client: client}, nil
}

func (d *AsynqDispatcher) Dispatch(ctx context.Context, jobID uint) error {
	task, err := NewRenderDispatchTask(jobID)
	if err != nil {
		return err
	}
	info, err := d.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueRender),
		asynq.TaskID(fmt.Sprintf("render-dispatch-%d", jobID)),
		asynq.MaxRetry(3),
		asynq.Timeout(5*time.Minute),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue render dispatch: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"job_id":  jobID,
		"task_id": info.ID,
		"queue":   info.Queue,
	}).Info("render dispatch enqueued")
	return nil
}

var (
	_ Dispatcher = (*InlineDispatcher)(nil)
	_ Dispatcher = (*AsynqDispatcher)(nil)
)
