package extraction

import (
	"context"

	"github.com/kailas-cloud/tablefinder/internal/domain"
)

// Completer runs a chat completion against an LLM backend.
type Completer interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error)
}
