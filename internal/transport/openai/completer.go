package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/tablefinder/internal/domain"
	"github.com/kailas-cloud/tablefinder/internal/metrics"
)

// Completer is a chat-completion backend using the OpenAI-compatible API
// (OpenAI, Nebius, vLLM, Ollama).
type Completer struct {
	client   *openai.Client
	model    string
	user     string
	provider string
	logger   *zap.Logger
}

// Config holds the completion provider settings.
type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	User     string
	Provider string
	Logger   *zap.Logger
}

// NewCompleter creates an OpenAI-compatible completion backend.
func NewCompleter(cfg *Config) *Completer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Completer{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    cfg.Model,
		user:     cfg.User,
		provider: cfg.Provider,
		logger:   cfg.Logger,
	}
}

// Complete implements domain.Completer with transport-level metrics.
func (c *Completer) Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		if m.Role == domain.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Text})
	}

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		User:        c.user,
	})

	duration := time.Since(start)

	if err != nil {
		kind, mapped := classifyError(ctx, err)
		metrics.LLMRequestsTotal.WithLabelValues(c.provider, c.model, "error").Inc()
		metrics.LLMErrorsTotal.WithLabelValues(c.provider, c.model, kind).Inc()
		c.logger.Debug("Chat completion failed",
			zap.String("provider", c.provider),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.Completion{}, mapped
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		metrics.LLMRequestsTotal.WithLabelValues(c.provider, c.model, "error").Inc()
		metrics.LLMErrorsTotal.WithLabelValues(c.provider, c.model, "empty_response").Inc()
		return domain.Completion{}, fmt.Errorf("empty completion response: %w", domain.ErrAIServiceError)
	}

	metrics.LLMRequestsTotal.WithLabelValues(c.provider, c.model, "success").Inc()
	metrics.LLMRequestDuration.WithLabelValues(c.provider, c.model).Observe(duration.Seconds())

	return domain.Completion{
		Text:             resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (c *Completer) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// classifyError maps a client error onto the domain AI sentinels.
// Rate limits, server errors and transport failures are unavailability;
// other HTTP errors mean the request or response was unusable.
func classifyError(ctx context.Context, err error) (string, error) {
	if ctx.Err() != nil {
		return "timeout", fmt.Errorf("%w: %w", domain.ErrAIServiceUnavailable, ctx.Err())
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := extractDetail(reqErr.Body)
		if msg == "" {
			msg = string(reqErr.Body)
		}
		return wrapStatus(reqErr.HTTPStatusCode, msg)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return wrapStatus(apiErr.HTTPStatusCode, apiErr.Message)
	}

	return "transport", fmt.Errorf("completion request failed: %w: %w", domain.ErrAIServiceUnavailable, err)
}

func wrapStatus(status int, msg string) (string, error) {
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return "unavailable", fmt.Errorf("completion API error %d: %s: %w", status, msg, domain.ErrAIServiceUnavailable)
	}
	return "api_error", fmt.Errorf("completion API error %d: %s: %w", status, msg, domain.ErrAIServiceError)
}

// extractDetail extracts the "detail" field from a JSON error body (Nebius error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
