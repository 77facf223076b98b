package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	falQueueBaseURL = "https://queue.fal.run"
	falDefaultModel = "fal-ai/nano-banana/edit"
)

// FalAI submits renders to the fal.ai queue. Completion arrives either by
// webhook or by polling the request status.
type FalAI struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	media      *MediaPreparer
}

type FalOption func(*FalAI)

// WithFalBaseURL points the client at another queue endpoint, used by tests.
func WithFalBaseURL(base string) FalOption {
	return func(f *FalAI) {
		f.baseURL = strings.TrimRight(base, "/")
	}
}

func NewFalAI(apiKey, model string, httpClient *http.Client, media *MediaPreparer, opts ...FalOption) (*FalAI, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("fal.ai api key is not configured")
	}
	if strings.TrimSpace(model) == "" {
		model = falDefaultModel
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if media == nil {
		media = NewMediaPreparer(httpClient)
	}
	f := &FalAI{
		apiKey:     apiKey,
		model:      strings.Trim(model, "/"),
		baseURL:    falQueueBaseURL,
		httpClient: httpClient,
		media:      media,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func (f *FalAI) Name() string {
	return "fal"
}

// appID is the owner/app part of the model path; queue status and result
// endpoints live under it.
func (f *FalAI) appID() string {
	parts := strings.Split(f.model, "/")
	if len(parts) <= 2 {
		return f.model
	}
	return strings.Join(parts[:2], "/")
}

func (f *FalAI) RequestRender(ctx context.Context, request RenderRequest) (*Submission, error) {
	prompt := strings.TrimSpace(request.Prompt)
	if prompt == "" {
		return nil, errors.New("fal.ai: prompt is required")
	}
	prepared, err := f.media.PrepareImages(ctx, collectInputs(request), MediaFormatURL)
	if err != nil {
		return nil, fmt.Errorf("fal.ai: prepare images: %w", err)
	}
	if len(prepared) == 0 {
		return nil, errors.New("fal.ai: at least one reference image is required")
	}
	imageURLs := make([]string, 0, len(prepared))
	for _, m := range prepared {
		imageURLs = append(imageURLs, m.Reference())
	}

	body, err := json.Marshal(map[string]any{
		"prompt":     prompt,
		"image_urls": imageURLs,
		"num_images": 1,
	})
	if err != nil {
		return nil, fmt.Errorf("fal.ai: marshal request: %w", err)
	}

	endpoint := f.baseURL + "/" + f.model
	if hook := strings.TrimSpace(request.WebhookURL); hook != "" {
		endpoint += "?fal_webhook=" + url.QueryEscape(hook)
	}

	var submission falSubmissionResponse
	if err := f.do(ctx, http.MethodPost, endpoint, body, &submission); err != nil {
		return nil, err
	}
	if submission.RequestID == "" {
		return nil, errors.New("fal.ai: submission returned no request id")
	}

	providerLogger(ctx, f.Name(), f.model).WithFields(logrus.Fields{
		"job_id":     request.JobID,
		"request_id": submission.RequestID,
		"images":     len(imageURLs),
	}).Info("render_fal_submitted")

	return &Submission{
		ProviderJobID: submission.RequestID,
		Status:        mapFalStatus(submission.Status),
	}, nil
}

func (f *FalAI) Poll(ctx context.Context, providerJobID string) (*Submission, error) {
	providerJobID = strings.TrimSpace(providerJobID)
	if providerJobID == "" {
		return nil, errors.New("fal.ai: request id is required")
	}
	base := f.baseURL + "/" + f.appID() + "/requests/" + url.PathEscape(providerJobID)

	var status falStatusResponse
	if err := f.do(ctx, http.MethodGet, base+"/status", nil, &status); err != nil {
		return nil, err
	}
	mapped := mapFalStatus(status.Status)
	if mapped != TaskStatusSucceeded {
		return &Submission{ProviderJobID: providerJobID, Status: mapped, Error: status.Error}, nil
	}

	var result falResult
	if err := f.do(ctx, http.MethodGet, base, nil, &result); err != nil {
		return nil, err
	}
	return result.submission(providerJobID), nil
}

// ParseWebhook decodes the callback fal sends to fal_webhook.
func (f *FalAI) ParseWebhook(body []byte) (*Submission, error) {
	var hook falWebhook
	if err := json.Unmarshal(body, &hook); err != nil {
		return nil, fmt.Errorf("fal.ai: decode webhook: %w", err)
	}
	if hook.RequestID == "" {
		return nil, errors.New("fal.ai: webhook missing request_id")
	}
	if !strings.EqualFold(hook.Status, "OK") {
		msg := strings.TrimSpace(hook.Error)
		if msg == "" {
			msg = "fal.ai reported an error"
		}
		return &Submission{ProviderJobID: hook.RequestID, Status: TaskStatusFailed, Error: msg}, nil
	}
	if hook.Payload == nil {
		return &Submission{ProviderJobID: hook.RequestID, Status: TaskStatusFailed, Error: ErrNoOutput.Error()}, nil
	}
	return hook.Payload.submission(hook.RequestID), nil
}

func (f *FalAI) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("fal.ai: create request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+f.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fal.ai: request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("fal.ai: read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("fal.ai http %d: %s", resp.StatusCode, logSnippet(string(raw)))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("fal.ai: decode response: %w", err)
	}
	return nil
}

func mapFalStatus(status string) TaskStatus {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "IN_QUEUE", "":
		return TaskStatusPending
	case "IN_PROGRESS":
		return TaskStatusRunning
	case "COMPLETED", "OK":
		return TaskStatusSucceeded
	default:
		return MapTaskStatus(status)
	}
}

type falSubmissionResponse struct {
	RequestID   string `json:"request_id"`
	Status      string `json:"status"`
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
}

type falStatusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

type falImagePayload struct {
	URL string
}

// UnmarshalJSON accepts either a bare URL string or an object with url.
func (p *falImagePayload) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &p.URL)
	}
	var obj struct {
		URL      string `json:"url"`
		ImageURL string `json:"image_url"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	p.URL = obj.URL
	if p.URL == "" {
		p.URL = obj.ImageURL
	}
	return nil
}

type falResult struct {
	Images []falImagePayload `json:"images"`
	Image  *falImagePayload  `json:"image"`
}

func (r *falResult) submission(requestID string) *Submission {
	var outputs []string
	for _, img := range r.Images {
		if u := strings.TrimSpace(img.URL); u != "" {
			outputs = append(outputs, u)
		}
	}
	if r.Image != nil && strings.TrimSpace(r.Image.URL) != "" {
		outputs = append(outputs, strings.TrimSpace(r.Image.URL))
	}
	if len(outputs) == 0 {
		return &Submission{ProviderJobID: requestID, Status: TaskStatusFailed, Error: ErrNoOutput.Error()}
	}
	return &Submission{ProviderJobID: requestID, Status: TaskStatusSucceeded, Outputs: outputs}
}

type falWebhook struct {
	RequestID string     `json:"request_id"`
	Status    string     `json:"status"`
	Error     string     `json:"error"`
	Payload   *falResult `json:"payload"`
}

var (
	_ Provider      = (*FalAI)(nil)
	_ WebhookParser = (*FalAI)(nil)
)
