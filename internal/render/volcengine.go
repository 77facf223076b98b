package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/volcengine/volcengine-go-sdk/service/arkruntime"
	volcModel "github.com/volcengine/volcengine-go-sdk/service/arkruntime/model"
	"github.com/volcengine/volcengine-go-sdk/volcengine"
)

const volcengineDefaultModel = "doubao-seedream-4-0-250828"

// Volcengine renders through the Ark image generation stream. The stream only
// closes once the image exists, so every submission comes back finished.
//
// 文档:https://www.volcengine.com/docs/82379/1824121
type Volcengine struct {
	client *arkruntime.Client
	model  string
	media  *MediaPreparer
}

func NewVolcengine(apiKey, model string, media *MediaPreparer) (*Volcengine, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("volcengine api key is not configured")
	}
	if strings.TrimSpace(model) == "" {
		model = volcengineDefaultModel
	}
	if media == nil {
		media = NewMediaPreparer(nil)
	}
	return &Volcengine{
		client: arkruntime.NewClientWithApiKey(apiKey),
		model:  model,
		media:  media,
	}, nil
}

func (v *Volcengine) Name() string {
	return "volcengine"
}

func (v *Volcengine) RequestRender(ctx context.Context, request RenderRequest) (*Submission, error) {
	logger := providerLogger(ctx, v.Name(), v.model)

	prepared, err := v.media.PrepareImages(ctx, collectInputs(request), MediaFormatURL)
	if err != nil {
		return nil, fmt.Errorf("volcengine: prepare images: %w", err)
	}
	images := make([]string, 0, len(prepared))
	for _, m := range prepared {
		images = append(images, m.Reference())
	}

	logger.WithFields(logrus.Fields{
		"job_id":              request.JobID,
		"prompt_preview":      logSnippet(request.Prompt),
		"reference_image_cnt": len(images),
	}).Info("render_volcengine_start")

	var sequential volcModel.SequentialImageGeneration = "disabled"
	generateReq := volcModel.GenerateImagesRequest{
		Model:                     v.model,
		Prompt:                    request.Prompt,
		Image:                     images,
		Size:                      volcengine.String("2K"),
		ResponseFormat:            volcengine.String(volcModel.GenerateImagesResponseFormatURL),
		Watermark:                 volcengine.Bool(false),
		SequentialImageGeneration: &sequential,
	}

	stream, err := v.client.GenerateImagesStreaming(ctx, generateReq)
	if err != nil {
		return nil, fmt.Errorf("volcengine: start stream: %w", err)
	}
	defer stream.Close()

	var (
		outputs []string
		failure string
	)
	for {
		recv, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("volcengine: stream: %w", err)
		}
		switch recv.Type {
		case "image_generation.partial_failed":
			if recv.Error != nil {
				failure = recv.Error.Message
				logger.WithField("code", recv.Error.Code).Warn("render_volcengine_partial_failed")
			}
		case "image_generation.partial_succeeded":
			if recv.Error == nil && recv.Url != nil {
				outputs = append(outputs, *recv.Url)
			}
		}
	}

	submission := &Submission{ProviderJobID: uuid.NewString()}
	if len(outputs) == 0 {
		if failure == "" {
			failure = ErrNoOutput.Error()
		}
		submission.Status = TaskStatusFailed
		submission.Error = failure
		return submission, nil
	}
	submission.Status = TaskStatusSucceeded
	submission.Outputs = outputs
	logger.WithField("outputs", len(outputs)).Info("render_volcengine_completed")
	return submission, nil
}

func (v *Volcengine) Poll(context.Context, string) (*Submission, error) {
	return nil, ErrPollUnsupported
}

var _ Provider = (*Volcengine)(nil)
