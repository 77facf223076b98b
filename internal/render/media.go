package render

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"stylist/internal/utils"

	"github.com/sirupsen/logrus"
)

// MediaFormat specifies the desired output format for prepared media.
type MediaFormat string

const (
	// MediaFormatDataURL returns data URL format (data:mime;base64,...).
	MediaFormatDataURL MediaFormat = "data_url"
	// MediaFormatURL keeps remote URLs as they are and normalises inline data
	// to a data URL.
	MediaFormatURL MediaFormat = "url"
)

// PreparedMedia is an image ready to be sent to a provider.
type PreparedMedia struct {
	Raw      []byte
	DataURL  string
	URL      string
	MimeType string
}

// Reference returns the remote URL when present, otherwise the data URL.
func (m *PreparedMedia) Reference() string {
	if m == nil {
		return ""
	}
	if m.URL != "" && len(m.Raw) == 0 {
		return m.URL
	}
	return m.DataURL
}

// MediaPreparer resolves source photos and item images into provider input.
type MediaPreparer struct {
	httpClient *http.Client
}

func NewMediaPreparer(client *http.Client) *MediaPreparer {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &MediaPreparer{httpClient: client}
}

// PrepareImage accepts a URL, a data URL or a raw base64 string.
func (p *MediaPreparer) PrepareImage(ctx context.Context, input string, format MediaFormat) (*PreparedMedia, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, errors.New("empty image input")
	}
	if utils.IsRemoteURL(trimmed) && format == MediaFormatURL {
		return &PreparedMedia{URL: trimmed}, nil
	}

	data, ext, err := utils.FetchMedia(ctx, p.httpClient, trimmed)
	if err != nil {
		return nil, err
	}
	mimeType := utils.MimeFromExtension(ext)
	prepared := &PreparedMedia{
		Raw:      data,
		DataURL:  fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data)),
		MimeType: mimeType,
	}
	if utils.IsRemoteURL(trimmed) {
		prepared.URL = trimmed
	}
	return prepared, nil
}

// PrepareImages keeps the input order and skips images that fail, as long as
// at least one succeeds.
func (p *MediaPreparer) PrepareImages(ctx context.Context, inputs []string, format MediaFormat) ([]*PreparedMedia, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	results := make([]*PreparedMedia, 0, len(inputs))
	var errs []string
	for idx, input := range inputs {
		prepared, err := p.PrepareImage(ctx, input, format)
		if err != nil {
			errs = append(errs, fmt.Sprintf("image %d: %v", idx, err))
			logrus.WithFields(logrus.Fields{
				"index": idx,
				"error": err,
			}).Warn("render_media_prepare_failed")
			continue
		}
		results = append(results, prepared)
	}

	if len(results) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("all images failed: %s", strings.Join(errs, "; "))
	}
	return results, nil
}

// collectInputs puts the source photo first, followed by the subject images.
func collectInputs(request RenderRequest) []string {
	inputs := make([]string, 0, len(request.SubjectImages)+1)
	if photo := strings.TrimSpace(request.SourcePhoto); photo != "" {
		inputs = append(inputs, photo)
	}
	for _, img := range request.SubjectImages {
		if img = strings.TrimSpace(img); img != "" {
			inputs = append(inputs, img)
		}
	}
	return inputs
}
