// Package completion wraps an LLM backend with token budgeting and logging.
package completion

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tablefinder/internal/domain"
	"github.com/kailas-cloud/tablefinder/internal/metrics"
)

// Budget is the enforcement side of BudgetTracker.
type Budget interface {
	Check(ctx context.Context) error
	Record(tokens int64)
	RemainingDaily() int64
	RemainingMonthly() int64
}

// InstrumentedCompleter adds budget enforcement, token accounting and logging
// to a Completer. Request and error metrics are recorded by the transport.
type InstrumentedCompleter struct {
	inner    domain.Completer
	provider string
	model    string
	budget   Budget
	logger   *zap.Logger
}

// NewInstrumentedCompleter wraps inner. budget may be nil.
func NewInstrumentedCompleter(
	inner domain.Completer, provider, model string,
	budget Budget, logger *zap.Logger,
) *InstrumentedCompleter {
	return &InstrumentedCompleter{
		inner:    inner,
		provider: provider,
		model:    model,
		budget:   budget,
		logger:   logger,
	}
}

// Complete checks the budget, delegates and records usage.
func (c *InstrumentedCompleter) Complete(
	ctx context.Context, req domain.CompletionRequest,
) (domain.Completion, error) {
	if c.budget != nil {
		if err := c.budget.Check(ctx); err != nil {
			c.logger.Warn("LLM call skipped",
				zap.String("provider", c.provider),
				zap.String("model", c.model),
				zap.Error(err),
			)
			return domain.Completion{}, fmt.Errorf("budget check: %w", err)
		}
	}

	start := time.Now()
	result, err := c.inner.Complete(ctx, req)
	duration := time.Since(start)

	if err != nil {
		c.logger.Warn("LLM request failed",
			zap.String("provider", c.provider),
			zap.String("model", c.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.Completion{}, fmt.Errorf("complete: %w", err)
	}

	metrics.LLMTokensTotal.WithLabelValues(c.provider, c.model, "prompt").Add(float64(result.PromptTokens))
	metrics.LLMTokensTotal.WithLabelValues(c.provider, c.model, "completion").Add(float64(result.CompletionTokens))

	if total := result.PromptTokens + result.CompletionTokens; c.budget != nil && total > 0 {
		c.budget.Record(int64(total))
		metrics.LLMBudgetTokensRemaining.WithLabelValues(c.provider, "daily").Set(float64(c.budget.RemainingDaily()))
		metrics.LLMBudgetTokensRemaining.WithLabelValues(c.provider, "monthly").Set(float64(c.budget.RemainingMonthly()))
	}

	c.logger.Debug("LLM request completed",
		zap.String("provider", c.provider),
		zap.String("model", c.model),
		zap.Duration("duration", duration),
		zap.Int("messages", len(req.Messages)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("completion_tokens", result.CompletionTokens),
	)
	return result, nil
}
