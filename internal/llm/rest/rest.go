package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"llm-signal-advisor/internal/api"
	"llm-signal-advisor/internal/llm"
	"llm-signal-advisor/internal/store"
	"llm-signal-advisor/internal/trace"
)

const textPath = "candidates.0.content.parts.0.text"

// Generator posts prompts to a generateContent style endpoint.
type Generator struct {
	url    string
	client *api.Client
}

// NewGenerator builds the generator from cfg. opts are applied after the
// configured timeout and key header.
func NewGenerator(cfg *store.Config, opts ...api.ClientOption) (*Generator, error) {
	if cfg.LLM.URL == "" {
		return nil, errors.New("GEMINI_URL missing")
	}
	apiKey := cfg.APIKey()
	if apiKey == "" {
		return nil, fmt.Errorf("%s missing", cfg.LLM.APIKeyEnv)
	}
	timeout := time.Duration(cfg.LLM.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client := api.NewClient(append([]api.ClientOption{
		api.WithTimeout(timeout),
		api.WithHeader("X-goog-api-key", apiKey),
		api.WithLogging(true),
	}, opts...)...)
	return &Generator{url: cfg.LLM.URL, client: client}, nil
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type request struct {
	Contents []content `json:"contents"`
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "gemini-rest-call")
	defer span.End()

	resp, err := g.client.PostJSON(ctx, g.url, request{Contents: []content{{Parts: []part{{Text: prompt}}}}}, nil)
	if err != nil {
		var se *api.StatusError
		if errors.As(err, &se) && se.Code == http.StatusTooManyRequests {
			return "", fmt.Errorf("gemini http %d: %w", se.Code, llm.ErrRateLimited)
		}
		return "", fmt.Errorf("gemini: %w", err)
	}
	if !gjson.ValidBytes(resp.Body) {
		return "", errors.New("gemini response is not JSON")
	}

	return strings.TrimSpace(gjson.GetBytes(resp.Body, textPath).String()), nil
}
