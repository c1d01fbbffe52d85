package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"llm-signal-advisor/internal/llm"
	"llm-signal-advisor/internal/store"
	"llm-signal-advisor/internal/trace"
)

// Generator calls Gemini through the genai SDK.
type Generator struct {
	client *genai.Client
	model  string
}

// NewGenerator builds a client using the key named by llm.api_key_env.
// llm.url, when set, replaces the SDK base URL.
func NewGenerator(ctx context.Context, cfg *store.Config) (*Generator, error) {
	apiKey := cfg.APIKey()
	if apiKey == "" {
		return nil, fmt.Errorf("%s missing", cfg.LLM.APIKeyEnv)
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.LLM.URL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.LLM.URL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Generator{client: client, model: cfg.LLM.Model}, nil
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "gemini-generate")
	defer span.End()

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		if isRateLimited(err) {
			return "", fmt.Errorf("gemini %s: %w", err.Error(), llm.ErrRateLimited)
		}
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

func isRateLimited(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code == http.StatusTooManyRequests
	}
	return false
}
