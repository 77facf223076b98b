// Package render talks to the image generation providers that produce look
// and try-on renders.
package render

import (
	"context"
	"errors"
	"strings"

	"stylist/internal/entity"
)

var (
	// ErrPollUnsupported is returned by providers that finish inside RequestRender.
	ErrPollUnsupported = errors.New("provider does not support polling")
	// ErrNoOutput means the provider reported success without any image.
	ErrNoOutput = errors.New("provider returned no image")
)

// RenderRequest is one render submission.
type RenderRequest struct {
	Kind          entity.JobKind
	JobID         uint
	SourcePhoto   string
	SubjectImages []string
	Prompt        string
	WebhookURL    string
}

// Submission is a provider's view of a render task. Outputs holds URLs or
// data URLs once Status is TaskStatusSucceeded.
type Submission struct {
	ProviderJobID string
	Status        TaskStatus
	Outputs       []string
	Error         string
}

// Done reports whether the provider will not change the task any more.
func (s *Submission) Done() bool {
	return s != nil && s.Status.IsFinal()
}

// Provider hands renders to an external generation service.
type Provider interface {
	Name() string
	// RequestRender submits work and returns as soon as the provider has
	// acknowledged it. Synchronous providers return a finished submission.
	RequestRender(ctx context.Context, request RenderRequest) (*Submission, error)
	// Poll fetches the current state of an acknowledged task.
	Poll(ctx context.Context, providerJobID string) (*Submission, error)
}

// WebhookParser is implemented by providers that can push completion
// callbacks.
type WebhookParser interface {
	ParseWebhook(body []byte) (*Submission, error)
}

// BuildPrompt returns the instruction sent alongside the images.
func BuildPrompt(kind entity.JobKind, description string) string {
	description = strings.TrimSpace(description)
	var b strings.Builder
	switch kind {
	case entity.JobKindItemTryOn:
		b.WriteString("Dress the person in the first image in the garment shown in the second image. ")
	default:
		b.WriteString("Dress the person in the first image in the complete outfit made of the remaining images. ")
	}
	b.WriteString("Keep their face, body shape and pose unchanged. Full-body fashion photo on a clean studio background.")
	if description != "" {
		b.WriteString(" Outfit: ")
		b.WriteString(description)
		b.WriteString(".")
	}
	return b.String()
}
