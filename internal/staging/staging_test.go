package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestTriggerLifecycle(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, TriggerPresent(dir))
	require.NoError(t, ConsumeTrigger(dir))

	write(t, dir, TriggerFile, `{"balance":1000}`)
	assert.True(t, TriggerPresent(dir))
	state, err := ReadTrigger(dir)
	require.NoError(t, err)
	assert.Equal(t, `{"balance":1000}`, state)

	require.NoError(t, ConsumeTrigger(dir))
	assert.False(t, TriggerPresent(dir))
}

func TestStageMovesOnlyInputs(t *testing.T) {
	src, svc := t.TempDir(), t.TempDir()
	write(t, src, "tHistoryEURUSD.json", "d1")
	write(t, src, "4H-EURUSD.json", "h1")
	write(t, src, TriggerFile, "state")
	write(t, src, "notes.txt", "x")
	write(t, src, "tHistoryEURUSD.csv", "x")

	now := time.Date(2026, 3, 1, 10, 20, 30, 250*int(time.Millisecond), time.UTC)
	work, staged, err := Stage(src, svc, now)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(svc, "2026-03-01T10-20-30-250Z"), work)
	assert.ElementsMatch(t, []string{"tHistoryEURUSD.json", "4H-EURUSD.json"}, staged)
	assert.DirExists(t, filepath.Join(work, ProcessedDir))
	assert.FileExists(t, filepath.Join(work, "tHistoryEURUSD.json"))
	assert.NoFileExists(t, filepath.Join(src, "tHistoryEURUSD.json"))
	assert.NoFileExists(t, filepath.Join(src, "4H-EURUSD.json"))
	assert.FileExists(t, filepath.Join(src, TriggerFile))
	assert.FileExists(t, filepath.Join(src, "notes.txt"))
}

func TestReplaceDirEmptiesExisting(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "predict")
	require.NoError(t, ReplaceDir(dir))
	write(t, dir, QueueFile, "[]")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "old"), 0o755))

	require.NoError(t, ReplaceDir(dir))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriteFileAtomicOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", DecisionFile)
	require.NoError(t, WriteFileAtomic(path, []byte("first")))
	require.NoError(t, WriteFileAtomic(path, []byte("second")))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(b))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestWriteJSONIndents(t *testing.T) {
	path := filepath.Join(t.TempDir(), DecisionFile)
	require.NoError(t, WriteJSON(path, map[string]string{"symbol": "EURUSD", "typ": "BUY"}))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"symbol\": \"EURUSD\",\n  \"typ\": \"BUY\"\n}", string(b))
}

func TestCopyAtomic(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a.json", "payload")
	require.NoError(t, CopyAtomic(filepath.Join(dir, "a.json"), filepath.Join(dir, "b.json")))
	b, err := os.ReadFile(filepath.Join(dir, "b.json"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(b))

	assert.Error(t, CopyAtomic(filepath.Join(dir, "missing"), filepath.Join(dir, "c.json")))
}

func TestDirSink(t *testing.T) {
	dir := t.TempDir()
	sink := DirSink{Dir: dir}
	require.NoError(t, sink.Put(context.Background(), "otHistoryEURUSD.json", "text"))
	assert.FileExists(t, filepath.Join(dir, "otHistoryEURUSD.json"))
	assert.Error(t, sink.Put(context.Background(), "../escape.json", "x"))
}
