package render

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"stylist/internal/config"
)

const (
	ProviderStub       = "stub"
	ProviderVolcengine = "volcengine"
	ProviderGemini     = "gemini"
	ProviderFal        = "fal"
)

// NewProvider instantiates the provider selected by RENDER_PROVIDER.
func NewProvider(ctx context.Context, cfg config.Config) (Provider, error) {
	httpClient := &http.Client{Timeout: 60 * time.Second}
	media := NewMediaPreparer(httpClient)

	switch strings.ToLower(strings.TrimSpace(cfg.RenderProvider)) {
	case "", ProviderStub:
		return NewStubProvider(), nil
	case ProviderVolcengine:
		return NewVolcengine(cfg.VolcengineAPIKey, cfg.RenderModel, media)
	case ProviderGemini:
		return NewGemini(ctx, cfg.GeminiAPIKey, cfg.RenderModel, media)
	case ProviderFal:
		return NewFalAI(cfg.FalAPIKey, cfg.RenderModel, httpClient, media)
	default:
		return nil, fmt.Errorf("unsupported render provider: %s", cfg.RenderProvider)
	}
}
