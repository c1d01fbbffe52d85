package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm-signal-advisor/internal/types"
)

func TestDefaultTemplatesEmbedData(t *testing.T) {
	b := Default()

	daily, err := b.Daily(`[{"time":1,"close":1.1}]`)
	require.NoError(t, err)
	assert.Contains(t, daily, "`[{\"time\":1,\"close\":1.1}]`")
	assert.Contains(t, daily, "Assess every pair sent.")

	h4, err := b.H4("EURUSD", "candles")
	require.NoError(t, err)
	assert.Contains(t, h4, "EURUSD")
	assert.Contains(t, h4, "`candles`")
}

func TestTraderPromptListsCandidates(t *testing.T) {
	top := []types.Assessment{types.NewAssessment("EURUSD", map[string]any{"BUY": 70.0, "SELL": 20.0})}
	out, err := Default().Trader("balance 1000", top)
	require.NoError(t, err)
	assert.Contains(t, out, "balance 1000")
	assert.Contains(t, out, `{"symbol":"EURUSD","BUY":70,"SELL":20}`)
	assert.Contains(t, out, `{"EURNZD_enc": {"symbol":"EURNZD","typ":"BUY"}}`)
}

func TestTemplateOverrideFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daily.tmpl")
	require.NoError(t, os.WriteFile(path, []byte("score: {{.Content}}"), 0o644))

	b, err := New(Paths{Daily: path})
	require.NoError(t, err)
	out, err := b.Daily("data")
	require.NoError(t, err)
	assert.Equal(t, "score: data", out)

	h4, err := b.H4("GBPUSD", "x")
	require.NoError(t, err)
	assert.Contains(t, h4, "GBPUSD")
}

func TestTemplateErrors(t *testing.T) {
	_, err := New(Paths{Trader: filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.tmpl")
	require.NoError(t, os.WriteFile(path, []byte("{{.Content"), 0o644))
	_, err = New(Paths{H4: path})
	assert.Error(t, err)

	path2 := filepath.Join(t.TempDir(), "unknown.tmpl")
	require.NoError(t, os.WriteFile(path2, []byte("{{.Nope}}"), 0o644))
	b, err := New(Paths{Daily: path2})
	require.NoError(t, err)
	_, err = b.Daily("x")
	assert.Error(t, err)
}
