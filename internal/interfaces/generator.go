package interfaces

import "context"

// Generator is the text-generation service: text in, free-form text out.
// Rate limiting must be reported by wrapping llm.ErrRateLimited.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Caller wraps a Generator with throttling and failure classification.
// input names the item that produced the prompt, for diagnostics.
type Caller interface {
	Call(ctx context.Context, input, prompt string) (string, error)
}
