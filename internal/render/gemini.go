package render

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

const geminiDefaultModel = "gemini-2.5-flash-image-preview"

// Gemini renders with the image-capable Gemini models. GenerateContent blocks
// until the image is ready.
type Gemini struct {
	client *genai.Client
	model  string
	media  *MediaPreparer
}

func NewGemini(ctx context.Context, apiKey, model string, media *MediaPreparer) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini api key is not configured")
	}
	if strings.TrimSpace(model) == "" {
		model = geminiDefaultModel
	}
	if media == nil {
		media = NewMediaPreparer(nil)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Gemini{client: client, model: model, media: media}, nil
}

func (g *Gemini) Name() string {
	return "gemini"
}

func (g *Gemini) RequestRender(ctx context.Context, request RenderRequest) (*Submission, error) {
	logger := providerLogger(ctx, g.Name(), g.model)

	prepared, err := g.media.PrepareImages(ctx, collectInputs(request), MediaFormatDataURL)
	if err != nil {
		return nil, fmt.Errorf("gemini: prepare images: %w", err)
	}

	parts := []*genai.Part{{Text: request.Prompt}}
	for _, m := range prepared {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: m.MimeType, Data: m.Raw},
		})
	}

	logger.WithFields(logrus.Fields{
		"job_id":              request.JobID,
		"prompt_preview":      logSnippet(request.Prompt),
		"reference_image_cnt": len(prepared),
	}).Info("render_gemini_start")

	result, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{{Role: "user", Parts: parts}}, &genai.GenerateContentConfig{
		CandidateCount: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: generate content: %w", err)
	}

	submission := &Submission{ProviderJobID: uuid.NewString()}
	outputs, err := inlineImages(result)
	if err != nil {
		submission.Status = TaskStatusFailed
		submission.Error = err.Error()
		return submission, nil
	}
	if len(outputs) == 0 {
		submission.Status = TaskStatusFailed
		submission.Error = ErrNoOutput.Error()
		return submission, nil
	}
	submission.Status = TaskStatusSucceeded
	submission.Outputs = outputs
	logger.WithField("outputs", len(outputs)).Info("render_gemini_completed")
	return submission, nil
}

func (g *Gemini) Poll(context.Context, string) (*Submission, error) {
	return nil, ErrPollUnsupported
}

// inlineImages returns every inline image of the response as a data URL.
func inlineImages(result *genai.GenerateContentResponse) ([]string, error) {
	if result == nil {
		return nil, errors.New("empty response")
	}
	if result.PromptFeedback != nil && result.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("prompt blocked: %s", result.PromptFeedback.BlockReasonMessage)
	}

	var images []string
	for _, cand := range result.Candidates {
		for _, rating := range cand.SafetyRatings {
			if rating.Blocked {
				return nil, fmt.Errorf("content blocked by safety setting: %s", rating.Category)
			}
		}
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			blob := part.InlineData
			if blob == nil || len(blob.Data) == 0 || !strings.HasPrefix(blob.MIMEType, "image/") {
				continue
			}
			images = append(images, "data:"+blob.MIMEType+";base64,"+base64.StdEncoding.EncodeToString(blob.Data))
		}
	}
	return images, nil
}

var _ Provider = (*Gemini)(nil)
