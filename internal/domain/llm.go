package domain

import "context"

// Completer is the shared chat-completion contract between the extraction usecase and LLM transports.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

// HealthChecker verifies backend availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// MessageRole identifies the author of a chat message.
type MessageRole string

// Chat message roles.
const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is a single prior turn passed to the model.
type Message struct {
	Role MessageRole
	Text string
}

// CompletionRequest is a provider-neutral chat completion call.
type CompletionRequest struct {
	System      string
	Messages    []Message
	Temperature float32
	MaxTokens   int
}

// Completion carries the model output and token usage.
type Completion struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}
