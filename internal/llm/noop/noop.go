package noop

import (
	"context"

	"llm-signal-advisor/internal/logger"
)

// NoopGenerator is a fallback generator used when no provider is configured.
type NoopGenerator struct{}

// NewNoopGenerator returns a generator whose answers are always empty.
func NewNoopGenerator() *NoopGenerator {
	return &NoopGenerator{}
}

// Generate implements the Generator interface. Empty answers produce no output files.
func (g *NoopGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	logger.Debug(ctx, "Noop generator called - returns empty text", "prompt_len", len(prompt))
	return "", nil
}
