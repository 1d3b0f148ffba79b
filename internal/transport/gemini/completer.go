// Package gemini is a chat-completion backend on the Google Gen AI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/kailas-cloud/tablefinder/internal/domain"
	"github.com/kailas-cloud/tablefinder/internal/metrics"
)

// Completer calls Gemini through the Gemini API (API key) or Vertex AI (project).
type Completer struct {
	client   *genai.Client
	model    string
	provider string
	logger   *zap.Logger
}

// Config holds the Gemini backend settings.
type Config struct {
	APIKey   string
	BaseURL  string
	Project  string
	Location string
	Model    string
	Provider string
	Logger   *zap.Logger
}

// NewCompleter creates a Gemini backend. An API key selects the Gemini API;
// otherwise Project and Location select Vertex AI.
func NewCompleter(ctx context.Context, cfg *Config) (*Completer, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.APIKey == "" {
		cc.Backend = genai.BackendVertexAI
		cc.Project = cfg.Project
		cc.Location = cfg.Location
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Completer{
		client:   client,
		model:    cfg.Model,
		provider: cfg.Provider,
		logger:   cfg.Logger,
	}, nil
}

// Complete implements domain.Completer.
func (c *Completer) Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := genai.Role(genai.RoleUser)
		if m.Role == domain.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Text, role))
	}

	gc := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(req.Temperature),
		ResponseMIMEType: "application/json",
	}
	if req.System != "" {
		gc.SystemInstruction = genai.NewContentFromText(req.System, "")
	}
	if req.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(req.MaxTokens) //nolint:gosec // bounded by config validation
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, gc)
	duration := time.Since(start)

	if err != nil {
		kind, mapped := classifyError(ctx, err)
		metrics.LLMRequestsTotal.WithLabelValues(c.provider, c.model, "error").Inc()
		metrics.LLMErrorsTotal.WithLabelValues(c.provider, c.model, kind).Inc()
		c.logger.Debug("Gemini generate failed",
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.Completion{}, mapped
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		metrics.LLMRequestsTotal.WithLabelValues(c.provider, c.model, "error").Inc()
		metrics.LLMErrorsTotal.WithLabelValues(c.provider, c.model, "empty_response").Inc()
		return domain.Completion{}, fmt.Errorf("empty gemini response: %w", domain.ErrAIServiceError)
	}

	metrics.LLMRequestsTotal.WithLabelValues(c.provider, c.model, "success").Inc()
	metrics.LLMRequestDuration.WithLabelValues(c.provider, c.model).Observe(duration.Seconds())

	out := domain.Completion{Text: text}
	if u := resp.UsageMetadata; u != nil {
		out.PromptTokens = int(u.PromptTokenCount)
		out.CompletionTokens = int(u.CandidatesTokenCount)
	}
	return out, nil
}

// HealthCheck fetches the configured model's metadata.
func (c *Completer) HealthCheck(ctx context.Context) error {
	if _, err := c.client.Models.Get(ctx, c.model, nil); err != nil {
		return fmt.Errorf("get model %s: %w", c.model, err)
	}
	return nil
}

func classifyError(ctx context.Context, err error) (string, error) {
	if ctx.Err() != nil {
		return "timeout", fmt.Errorf("%w: %w", domain.ErrAIServiceUnavailable, ctx.Err())
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError {
			return "unavailable", fmt.Errorf("gemini API error %d %s: %s: %w",
				apiErr.Code, apiErr.Status, apiErr.Message, domain.ErrAIServiceUnavailable)
		}
		return "api_error", fmt.Errorf("gemini API error %d %s: %s: %w",
			apiErr.Code, apiErr.Status, apiErr.Message, domain.ErrAIServiceError)
	}

	return "transport", fmt.Errorf("gemini request failed: %w: %w", domain.ErrAIServiceUnavailable, err)
}
