package llm

import "context"

// CompletionRequest is a single system+user chat turn
type CompletionRequest struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Completer produces text completions. The NL bridge depends on this
// interface; Client is the production implementation.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	// Model is the model identifier reported back to API callers
	Model() string
}

// provider is one backend SDK
type provider interface {
	complete(ctx context.Context, req CompletionRequest) (string, error)
	name() string
}
