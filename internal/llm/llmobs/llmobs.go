package llmobs

import (
	"context"
	"errors"

	"llm-signal-advisor/internal/interfaces"
	"llm-signal-advisor/internal/llm"
	"llm-signal-advisor/internal/logger"
	"llm-signal-advisor/internal/trace"
)

// observableGenerator wraps a Generator with observability (logging & tracing)
type observableGenerator struct {
	gen      interfaces.Generator
	provider string
}

// Compile-time interface check
var _ interfaces.Generator = (*observableGenerator)(nil)

// Wrap wraps a generator with observability middleware
func Wrap(gen interfaces.Generator, provider string) interfaces.Generator {
	return &observableGenerator{
		gen:      gen,
		provider: provider,
	}
}

// Generate requests a completion with observability
func (og *observableGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "llm.Generate")
	defer span.End()

	// Use DebugSkip(1) to report the actual caller, not this middleware wrapper
	if logger.IsDebugEnabled() {
		logger.DebugSkip(ctx, 1, "Requesting completion",
			"provider", og.provider,
			"prompt_len", len(prompt),
			"prompt_head", head(prompt, 120),
		)
	}

	text, err := og.gen.Generate(ctx, prompt)
	if err != nil {
		if errors.Is(err, llm.ErrRateLimited) {
			logger.WarnSkip(ctx, 1, "Completion throttled",
				"provider", og.provider,
				"error", err,
			)
			return "", err
		}
		logger.ErrorWithErrSkip(ctx, 1, "Completion failed", err,
			"provider", og.provider,
		)
		return "", err
	}

	logger.InfoSkip(ctx, 1, "Completion received",
		"provider", og.provider,
		"response_len", len(text),
	)

	return text, nil
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
