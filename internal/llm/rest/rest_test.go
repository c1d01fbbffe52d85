package rest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"llm-signal-advisor/internal/api"
	"llm-signal-advisor/internal/llm"
	"llm-signal-advisor/internal/store"
)

func newTestGenerator(t *testing.T, h http.HandlerFunc) *Generator {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	t.Setenv("TEST_REST_KEY", "secret")
	cfg := &store.Config{}
	cfg.LLM.URL = srv.URL
	cfg.LLM.APIKeyEnv = "TEST_REST_KEY"
	g, err := NewGenerator(cfg, api.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return g
}

func TestGenerateSendsPromptAndReadsText(t *testing.T) {
	var gotKey, gotPrompt string
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-goog-api-key")
		b, _ := io.ReadAll(r.Body)
		gotPrompt = gjson.GetBytes(b, "contents.0.parts.0.text").String()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"  {\"EURUSD\":{\"BUY\":70}}\n"}]}}]}`))
	})

	out, err := g.Generate(context.Background(), "score EURUSD")
	require.NoError(t, err)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "score EURUSD", gotPrompt)
	assert.Equal(t, `{"EURUSD":{"BUY":70}}`, out)
}

func TestGenerateMissingTextIsEmpty(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	})
	out, err := g.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestGenerate429IsRateLimited(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, err := g.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrRateLimited)
}

func TestGenerate429ThroughCallerIsRetryable(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	var waited int
	c := llm.NewCaller(g, llm.WithSleep(func(context.Context, time.Duration) error { waited++; return nil }))

	_, err := c.Call(context.Background(), "tHistoryEURUSD.json", "p")
	require.Error(t, err)
	assert.True(t, llm.IsRetryable(err))
	assert.Equal(t, 1, waited)
}

func TestGenerateServerErrorIsNotRateLimited(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	_, err := g.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.NotErrorIs(t, err, llm.ErrRateLimited)
	assert.Contains(t, err.Error(), "500")
}

func TestNewGeneratorRequiresURLAndKey(t *testing.T) {
	cfg := &store.Config{}
	_, err := NewGenerator(cfg)
	assert.Error(t, err)

	t.Setenv("EMPTY_KEY", "")
	cfg.LLM.URL = "http://localhost"
	cfg.LLM.APIKeyEnv = "EMPTY_KEY"
	_, err = NewGenerator(cfg)
	assert.Error(t, err)
}
