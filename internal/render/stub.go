package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// placeholderPNG is a 1x1 image returned by the stub provider.
const placeholderPNG = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

// StubProvider acknowledges every request and completes it on the first
// poll, after which the task is forgotten. It lets the whole job pipeline run
// without provider credentials.
type StubProvider struct {
	mu    sync.Mutex
	tasks map[string]*Submission
}

func NewStubProvider() *StubProvider {
	return &StubProvider{tasks: make(map[string]*Submission)}
}

func (s *StubProvider) Name() string {
	return "stub"
}

func (s *StubProvider) RequestRender(ctx context.Context, request RenderRequest) (*Submission, error) {
	if strings.TrimSpace(request.SourcePhoto) == "" {
		return nil, errors.New("stub: source photo is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.tasks[id] = &Submission{
		ProviderJobID: id,
		Status:        TaskStatusSucceeded,
		Outputs:       []string{placeholderPNG},
	}
	s.mu.Unlock()

	providerLogger(ctx, s.Name(), "").WithFields(logrus.Fields{
		"provider_job_id": id,
		"job_id":          request.JobID,
		"subject_images":  len(request.SubjectImages),
	}).Info("render_stub_accepted")

	return &Submission{ProviderJobID: id, Status: TaskStatusPending}, nil
}

func (s *StubProvider) Poll(_ context.Context, providerJobID string) (*Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[providerJobID]
	if !ok {
		return &Submission{
			ProviderJobID: providerJobID,
			Status:        TaskStatusFailed,
			Error:         "unknown task",
		}, nil
	}
	out := *task
	out.Outputs = append([]string(nil), task.Outputs...)
	// 结果只交付一次
	if out.Done() {
		delete(s.tasks, providerJobID)
	}
	return &out, nil
}

// genericWebhook is the callback body accepted by the stub provider.
type genericWebhook struct {
	ProviderJobID string   `json:"provider_job_id"`
	Status        string   `json:"status"`
	Outputs       []string `json:"outputs"`
	Error         string   `json:"error"`
}

func (s *StubProvider) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *StubProvider) ParseWebhook(body []byte) (*Submission, error) {
	var payload genericWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("stub: decode webhook: %w", err)
	}
	if strings.TrimSpace(payload.ProviderJobID) == "" {
		return nil, errors.New("stub: webhook missing provider_job_id")
	}
	return &Submission{
		ProviderJobID: payload.ProviderJobID,
		Status:        MapTaskStatus(payload.Status),
		Outputs:       payload.Outputs,
		Error:         payload.Error,
	}, nil
}

var (
	_ Provider      = (*StubProvider)(nil)
	_ WebhookParser = (*StubProvider)(nil)
)
