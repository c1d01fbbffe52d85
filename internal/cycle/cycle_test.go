package cycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm-signal-advisor/internal/journal"
	"llm-signal-advisor/internal/llm"
	"llm-signal-advisor/internal/prompt"
	"llm-signal-advisor/internal/store"
	"llm-signal-advisor/internal/types"
)

type reply struct {
	text string
	err  error
}

// scriptedGen answers by the first marker contained in the prompt.
type scriptedGen struct {
	mu      sync.Mutex
	replies map[string]reply
	seen    []string
}

func (g *scriptedGen) Generate(_ context.Context, p string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for marker, r := range g.replies {
		if strings.Contains(p, marker) {
			g.seen = append(g.seen, marker)
			return r.text, r.err
		}
	}
	return "", errors.New("unexpected prompt")
}

type env struct {
	src, svc, pred, logs string
	cfg                  *store.Config
	gen                  *scriptedGen
	runner               *Runner
}

func newEnv(t *testing.T, replies map[string]reply) *env {
	t.Helper()
	root := t.TempDir()
	e := &env{
		src:  filepath.Join(root, "mql"),
		svc:  filepath.Join(root, "service"),
		pred: filepath.Join(root, "predict"),
		logs: filepath.Join(root, "logs"),
		gen:  &scriptedGen{replies: replies},
	}
	for _, d := range []string{e.src, e.svc} {
		require.NoError(t, os.MkdirAll(d, 0o755))
	}
	cfg := &store.Config{}
	cfg.Dirs.Source, cfg.Dirs.Service, cfg.Dirs.Predict = e.src, e.svc, e.pred
	cfg.Queue.EscalationThreshold = 5
	e.cfg = cfg

	caller := llm.NewCaller(e.gen, llm.WithSleep(func(context.Context, time.Duration) error { return nil }))
	e.runner = NewRunner(cfg, caller, prompt.Default(), journal.New(e.logs))
	tick := 0
	e.runner.now = func() time.Time {
		tick++
		return time.Date(2026, 6, 1, 9, 0, tick, 0, time.UTC)
	}
	return e
}

func (e *env) put(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(e.src, name), []byte(content), 0o644))
}

func readDecision(t *testing.T, path string) types.Decision {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var d types.Decision
	require.NoError(t, json.Unmarshal(b, &d))
	return d
}

func readList(t *testing.T, path string) []types.Assessment {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var list []types.Assessment
	require.NoError(t, json.Unmarshal(b, &list))
	return list
}

func TestRunCycleZeroMinSignalScoresEveryEntry(t *testing.T) {
	e := newEnv(t, map[string]reply{
		"DAILY-A":   {text: `{"EURUSD":{"BUY":80,"SELL":10,"HOLD":10}}`},
		"DAILY-B":   {text: `{"GBPUSD":{"BUY":20,"SELL":30,"HOLD":50}}`},
		"H4-EURUSD": {text: `{"EURUSD":{"BUY":70,"SELL":20,"HOLD":10}}`},
		"H4-GBPUSD": {text: `{"GBPUSD":{"BUY":1,"SELL":1,"HOLD":98}}`},
	})
	zero := 0.0
	e.cfg.H4.MinSignal = &zero
	e.put(t, "analyze.json", `{}`)
	e.put(t, "tHistoryA.json", "DAILY-A")
	e.put(t, "tHistoryB.json", "DAILY-B")
	e.put(t, "4H-EURUSD.json", "H4-EURUSD")
	e.put(t, "4H-GBPUSD.json", "H4-GBPUSD")

	report, err := e.runner.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.H4Calls)
	assert.Equal(t, 2, report.H4Ranked)
	assert.Contains(t, e.gen.seen, "H4-GBPUSD")
}

func TestRunCycleFullPipeline(t *testing.T) {
	e := newEnv(t, map[string]reply{
		"DAILY-A":   {text: `{"EURUSD":{"BUY":80,"SELL":10,"HOLD":10}}`},
		"DAILY-B":   {text: "Here you go\n```json\n{\"GBPUSD\":{\"BUY\":20,\"SELL\":30,\"HOLD\":50}}\n```"},
		"DAILY-C":   {err: fmt.Errorf("429: %w", llm.ErrRateLimited)},
		"H4-EURUSD": {text: `{"EURUSD":{"BUY":70,"SELL":20,"HOLD":10}}`},
		"H4-GBPUSD": {text: `{"GBPUSD":{"BUY":1,"SELL":1,"HOLD":98}}`},
	})
	e.put(t, "analyze.json", `{"balance":1000}`)
	e.put(t, "tHistoryA.json", "DAILY-A")
	e.put(t, "tHistoryB.json", "DAILY-B")
	e.put(t, "tHistoryC.json", "DAILY-C")
	e.put(t, "4H-EURUSD.json", "H4-EURUSD")
	e.put(t, "4H-GBPUSD.json", "H4-GBPUSD")

	report, err := e.runner.RunCycle(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Triggered)
	assert.NotEmpty(t, report.CycleID)
	assert.Len(t, report.Staged, 5)
	assert.Equal(t, 3, report.DailyCalls)
	assert.Equal(t, 1, report.FailedCalls)
	assert.Equal(t, 2, report.DailyRanked)
	assert.Equal(t, 1, report.H4Calls, "only strong daily entries get a 4H call")
	assert.Equal(t, 1, report.H4Ranked)
	assert.Equal(t, types.Decision{Symbol: "EURUSD", Typ: "BUY"}, report.Decision)
	assert.Empty(t, report.QueueWarning)
	assert.NotContains(t, e.gen.seen, "H4-GBPUSD")

	processed := filepath.Join(report.WorkDir, "processed")
	assert.FileExists(t, filepath.Join(processed, "otHistoryA.json"))
	assert.FileExists(t, filepath.Join(processed, "otHistoryB.json"))
	assert.NoFileExists(t, filepath.Join(processed, "otHistoryC.json"))
	assert.FileExists(t, filepath.Join(processed, "o4H-4H-EURUSD.json"))

	daily := readList(t, filepath.Join(processed, "aDaysResult.json"))
	require.Len(t, daily, 2)
	assert.Equal(t, "EURUSD", daily[0].Symbol)
	assert.Equal(t, "GBPUSD", daily[1].Symbol)
	assert.Len(t, readList(t, filepath.Join(processed, "a4HResult.json")), 1)

	assert.Len(t, readList(t, filepath.Join(e.pred, "aPredict.json")), 2)
	left := readList(t, filepath.Join(e.pred, "cPredict.json"))
	require.Len(t, left, 1)
	assert.Equal(t, "GBPUSD", left[0].Symbol)

	assert.Equal(t, report.Decision, readDecision(t, filepath.Join(e.pred, "predict.json")))
	assert.Equal(t, report.Decision, readDecision(t, filepath.Join(e.src, "predict.json")))

	assert.NoFileExists(t, filepath.Join(e.src, "analyze.json"))
	assert.NoFileExists(t, filepath.Join(e.src, "tHistoryA.json"))

	entries, err := os.ReadDir(filepath.Join(e.logs, "decisions"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRunCycleWithoutTriggerWritesNothing(t *testing.T) {
	e := newEnv(t, nil)
	e.put(t, "tHistoryA.json", "DAILY-A")

	report, err := e.runner.RunCycle(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Triggered)
	assert.FileExists(t, filepath.Join(e.src, "tHistoryA.json"))
	assert.NoDirExists(t, e.pred)

	entries, err := os.ReadDir(e.svc)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunCycleMissingDirs(t *testing.T) {
	e := newEnv(t, nil)
	e.cfg.Dirs.Predict = ""
	_, err := e.runner.RunCycle(context.Background())
	assert.ErrorIs(t, err, ErrMissingDirs)
}

func TestRunCycleDrainsQueueAcrossCycles(t *testing.T) {
	e := newEnv(t, map[string]reply{
		"DAILY-A": {text: `{"EURUSD":{"BUY":80,"SELL":10},"GBPUSD":{"BUY":20,"SELL":30}}`},
	})
	e.put(t, "analyze.json", "state")
	e.put(t, "tHistoryA.json", "DAILY-A")

	r1, err := e.runner.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.Decision{Symbol: "EURUSD", Typ: "BUY"}, r1.Decision)

	// no new exports: the snapshot stays and the queue keeps draining
	e.put(t, "analyze.json", "state")
	r2, err := e.runner.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, r2.DailyRanked)
	assert.Equal(t, types.Decision{Symbol: "GBPUSD", Typ: "SELL"}, r2.Decision)

	e.put(t, "analyze.json", "state")
	r3, err := e.runner.RunCycle(context.Background())
	require.NoError(t, err)
	assert.True(t, r3.Decision.IsEmpty())
	assert.NotEmpty(t, r3.QueueWarning)
	assert.True(t, readDecision(t, filepath.Join(e.src, "predict.json")).IsEmpty())
	assert.NoFileExists(t, filepath.Join(e.src, "analyze.json"))
}

func TestRunCycleNewSnapshotResetsQueue(t *testing.T) {
	e := newEnv(t, map[string]reply{
		"DAILY-A": {text: `{"EURUSD":{"BUY":80,"SELL":10},"GBPUSD":{"BUY":20,"SELL":30}}`},
		"DAILY-B": {text: `{"USDJPY":{"BUY":5,"SELL":45}}`},
	})
	e.put(t, "analyze.json", "state")
	e.put(t, "tHistoryA.json", "DAILY-A")
	_, err := e.runner.RunCycle(context.Background())
	require.NoError(t, err)

	e.put(t, "analyze.json", "state")
	e.put(t, "tHistoryB.json", "DAILY-B")
	r2, err := e.runner.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.Decision{Symbol: "USDJPY", Typ: "SELL"}, r2.Decision)
	assert.Empty(t, readList(t, filepath.Join(e.pred, "cPredict.json")))
}

func TestRunCycleEscalatesLongQueue(t *testing.T) {
	var scores []string
	for i := 1; i <= 6; i++ {
		scores = append(scores, fmt.Sprintf(`"S%d":{"BUY":%d,"SELL":5}`, i, 90-i))
	}
	e := newEnv(t, map[string]reply{
		"DAILY-A":                              {text: "{" + strings.Join(scores, ",") + "}"},
		"Current state of the trading account": {text: `{"pick":{"symbol":"S3","typ":"SELL"}}`},
	})
	e.put(t, "analyze.json", "equity 5000")
	e.put(t, "tHistoryA.json", "DAILY-A")

	report, err := e.runner.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.Decision{Symbol: "S3", Typ: "SELL"}, report.Decision)
	assert.Len(t, readList(t, filepath.Join(e.pred, "cPredict.json")), 6)
	assert.FileExists(t, filepath.Join(report.WorkDir, "processed", "traderInfo.json"))
}

func TestRunCycleFailureKeepsTrigger(t *testing.T) {
	e := newEnv(t, map[string]reply{
		"DAILY-A": {text: `{"EURUSD":{"BUY":80,"SELL":10}}`},
	})
	// predict path is a file, so publishing fails
	require.NoError(t, os.WriteFile(e.pred, []byte("x"), 0o644))
	e.put(t, "analyze.json", "state")
	e.put(t, "tHistoryA.json", "DAILY-A")

	_, err := e.runner.RunCycle(context.Background())
	require.Error(t, err)
	assert.FileExists(t, filepath.Join(e.src, "analyze.json"))
}

func TestRunCycleCancelledStops(t *testing.T) {
	e := newEnv(t, map[string]reply{
		"DAILY-A": {text: `{"EURUSD":{"BUY":80,"SELL":10}}`},
	})
	e.put(t, "analyze.json", "state")
	e.put(t, "tHistoryA.json", "DAILY-A")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.runner.RunCycle(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.FileExists(t, filepath.Join(e.src, "analyze.json"))
}
