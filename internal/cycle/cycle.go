// Package cycle runs one full advisory cycle: stage the platform's exports,
// score them, rank the answers and hand one decision back.
package cycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"llm-signal-advisor/internal/advisor"
	"llm-signal-advisor/internal/interfaces"
	"llm-signal-advisor/internal/journal"
	"llm-signal-advisor/internal/llm"
	"llm-signal-advisor/internal/logger"
	"llm-signal-advisor/internal/merge"
	"llm-signal-advisor/internal/prompt"
	"llm-signal-advisor/internal/queue"
	"llm-signal-advisor/internal/staging"
	"llm-signal-advisor/internal/store"
	"llm-signal-advisor/internal/types"
)

var ErrMissingDirs = errors.New("cycle: source, service and predict directories must be set")

type Runner struct {
	cfg     *store.Config
	caller  interfaces.Caller
	prompts *prompt.Builder
	journal *journal.Journal
	now     func() time.Time
	newID   func() string
}

var _ interfaces.CycleRunner = (*Runner)(nil)

// NewRunner returns a Runner. j may be nil to disable the decision journal.
func NewRunner(cfg *store.Config, caller interfaces.Caller, prompts *prompt.Builder, j *journal.Journal) *Runner {
	return &Runner{
		cfg:     cfg,
		caller:  caller,
		prompts: prompts,
		journal: j,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// RunCycle does nothing unless the trigger file is present. The trigger is
// removed only after the decision is published, so a failed cycle is
// retried on the next poll.
func (r *Runner) RunCycle(ctx context.Context) (types.CycleReport, error) {
	report := types.CycleReport{CycleID: r.newID()}
	ctx = logger.WithFields(ctx, "cycle_id", report.CycleID)

	if !r.cfg.DirsSet() {
		logger.Error(ctx, "Exchange directories not configured",
			"source", r.cfg.Dirs.Source,
			"service", r.cfg.Dirs.Service,
			"predict", r.cfg.Dirs.Predict,
		)
		return report, ErrMissingDirs
	}

	src := r.cfg.Dirs.Source
	if !staging.TriggerPresent(src) {
		logger.Debug(ctx, "No trigger, skipping cycle", "dir", src)
		return report, nil
	}
	report.Triggered = true

	state, err := staging.ReadTrigger(src)
	if err != nil {
		return report, fmt.Errorf("read trigger: %w", err)
	}

	workDir, staged, err := staging.Stage(src, r.cfg.Dirs.Service, r.now())
	report.WorkDir, report.Staged = workDir, staged
	if err != nil {
		return report, err
	}
	logger.Info(ctx, "Inputs staged", "work_dir", workDir, "files", len(staged))

	processed := filepath.Join(workDir, staging.ProcessedDir)
	sink := staging.DirSink{Dir: processed}

	op := logger.StartOperation(ctx, "cycle.daily", "work_dir", workDir)
	calls, failed, err := r.dailyPhase(op.GetContext(), workDir, sink)
	report.DailyCalls, report.FailedCalls = calls, failed
	if err != nil {
		op.EndWithError(err, "calls", calls)
		return report, err
	}
	op.End("calls", calls, "failed", failed)

	outputs, err := merge.LoadDir(processed)
	if err != nil {
		return report, err
	}
	daily := merge.Merge(ctx, outputs, merge.DailyFilter)
	report.DailyRanked = len(daily)
	if err := r.publishDaily(ctx, processed, daily); err != nil {
		return report, err
	}

	if r.cfg.H4Enabled() && len(daily) > 0 {
		op := logger.StartOperation(ctx, "cycle.h4", "candidates", len(daily))
		calls, failed, err := r.h4Phase(op.GetContext(), workDir, daily, sink)
		report.H4Calls = calls
		report.FailedCalls += failed
		if err != nil {
			op.EndWithError(err, "calls", calls)
			return report, err
		}
		op.End("calls", calls, "failed", failed)
		if calls > 0 {
			outputs, err := merge.LoadDir(processed)
			if err != nil {
				return report, err
			}
			h4 := merge.Merge(ctx, outputs, merge.H4Filter)
			report.H4Ranked = len(h4)
			if err := staging.WriteJSON(filepath.Join(processed, staging.H4ResultFile), h4); err != nil {
				return report, fmt.Errorf("write 4H result: %w", err)
			}
		}
	}

	op = logger.StartOperation(ctx, "cycle.decide")
	d, warning, err := r.Decide(op.GetContext(), state, sink)
	report.Decision, report.QueueWarning = d, warning
	if err != nil {
		op.EndWithError(err)
		return report, err
	}
	op.End("symbol", d.Symbol, "typ", d.Typ)
	r.record(ctx, report)

	if err := staging.ConsumeTrigger(src); err != nil {
		return report, fmt.Errorf("remove trigger: %w", err)
	}
	return report, nil
}

// Decide advances the queue and publishes the decision to the predict and
// source directories. sink, when not nil, keeps the advisory answer.
// Queue state problems are reported as a warning with an empty decision.
func (r *Runner) Decide(ctx context.Context, accountState string, sink interfaces.ResponseSink) (types.Decision, string, error) {
	if !r.cfg.DirsSet() {
		return types.Decision{}, "", ErrMissingDirs
	}
	predictDir := r.cfg.Dirs.Predict

	fresh := r.loadSnapshot(ctx, filepath.Join(predictDir, staging.SnapshotFile))
	q := queue.New(
		&queue.FileStore{Path: filepath.Join(predictDir, staging.QueueFile)},
		advisor.New(r.caller, r.prompts, sink),
		r.cfg.Queue.EscalationThreshold,
	)

	var warning string
	d, err := q.Advance(ctx, fresh, accountState)
	if err != nil {
		if !queue.IsStructural(err) {
			return types.Decision{}, "", err
		}
		warning = err.Error()
		logger.Warn(ctx, "Queue state unusable, emitting empty decision", "error", err)
		d = types.Decision{}
	}

	out := filepath.Join(predictDir, staging.DecisionFile)
	if err := staging.WriteJSON(out, d); err != nil {
		return d, warning, fmt.Errorf("write decision: %w", err)
	}
	if err := staging.CopyAtomic(out, filepath.Join(r.cfg.Dirs.Source, staging.DecisionFile)); err != nil {
		return d, warning, fmt.Errorf("mirror decision: %w", err)
	}
	return d, warning, nil
}

func (r *Runner) dailyPhase(ctx context.Context, workDir string, sink interfaces.ResponseSink) (int, int, error) {
	inputs, err := merge.LoadDir(workDir)
	if err != nil {
		return 0, 0, err
	}
	var calls, failed int
	for _, in := range inputs {
		if !strings.HasPrefix(in.Name, staging.DailyPrefix) || !strings.HasSuffix(in.Name, staging.InputSuffix) {
			continue
		}
		p, err := r.prompts.Daily(in.Content)
		if err != nil {
			return calls, failed, err
		}
		ok, err := r.call(ctx, in.Name, staging.DailyOutPrefix+in.Name, p, sink)
		if err != nil {
			return calls, failed, err
		}
		calls++
		if !ok {
			failed++
		}
	}
	return calls, failed, nil
}

// h4Phase scores the 4-hour export of every strong daily entry.
func (r *Runner) h4Phase(ctx context.Context, workDir string, daily types.RankedList, sink interfaces.ResponseSink) (int, int, error) {
	var calls, failed int
	for _, a := range daily {
		if !r.strong(a) {
			continue
		}
		name := staging.H4Prefix + a.Symbol + staging.InputSuffix
		if name != filepath.Base(name) {
			logger.Warn(ctx, "Symbol is not a plain file name, skipping 4H", "symbol", a.Symbol)
			continue
		}
		b, err := os.ReadFile(filepath.Join(workDir, name))
		if err != nil {
			logger.Debug(ctx, "No 4H export for symbol", "symbol", a.Symbol)
			continue
		}
		p, err := r.prompts.H4(a.Symbol, string(b))
		if err != nil {
			return calls, failed, err
		}
		ok, err := r.call(ctx, name, staging.H4OutPrefix+name, p, sink)
		if err != nil {
			return calls, failed, err
		}
		calls++
		if !ok {
			failed++
		}
	}
	return calls, failed, nil
}

func (r *Runner) strong(a types.Assessment) bool {
	buy, _ := a.Number(types.SideBuy)
	sell, _ := a.Number(types.SideSell)
	threshold := r.cfg.H4MinSignal()
	return buy > threshold || sell > threshold
}

// call returns ok=false for failed calls, which are skipped. The error is
// only set when the cycle itself must stop.
func (r *Runner) call(ctx context.Context, input, output, p string, sink interfaces.ResponseSink) (bool, error) {
	text, err := r.caller.Call(ctx, input, p)
	if cerr := ctx.Err(); cerr != nil {
		return false, cerr
	}
	if err != nil {
		if llm.IsRetryable(err) {
			logger.Warn(ctx, "Call throttled, input skipped", "input", input)
		} else {
			logger.ErrorWithErr(ctx, "Call failed, input skipped", err, "input", input)
		}
		return false, nil
	}
	if text == "" {
		logger.Warn(ctx, "Empty response, no output written", "input", input)
		return true, nil
	}
	if err := sink.Put(ctx, output, text); err != nil {
		return false, fmt.Errorf("store response %s: %w", output, err)
	}
	return true, nil
}

// publishDaily writes the daily ranking and, when it holds entries,
// replaces the predict directory with it. Replacing the directory also
// drops the queue, which is then reseeded from the new snapshot.
func (r *Runner) publishDaily(ctx context.Context, processed string, daily types.RankedList) error {
	if err := staging.WriteJSON(filepath.Join(processed, staging.DailyResultFile), daily); err != nil {
		return fmt.Errorf("write daily result: %w", err)
	}
	if len(daily) == 0 {
		logger.Warn(ctx, "No daily assessments, keeping previous snapshot")
		return nil
	}
	if err := staging.ReplaceDir(r.cfg.Dirs.Predict); err != nil {
		return fmt.Errorf("reset predict dir: %w", err)
	}
	if err := staging.WriteJSON(filepath.Join(r.cfg.Dirs.Predict, staging.SnapshotFile), daily); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}
	logger.Info(ctx, "Daily snapshot published", "entries", len(daily))
	return nil
}

// loadSnapshot returns nil when there is no usable snapshot.
func (r *Runner) loadSnapshot(ctx context.Context, path string) types.RankedList {
	b, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.ErrorWithErr(ctx, "Failed to read snapshot", err, "path", path)
		}
		return nil
	}
	var list []types.Assessment
	if err := json.Unmarshal(b, &list); err != nil || list == nil {
		logger.Warn(ctx, "Snapshot is not an assessment list, ignoring", "path", path)
		return nil
	}
	return types.RankedList(list)
}

func (r *Runner) record(ctx context.Context, report types.CycleReport) {
	if r.journal == nil {
		return
	}
	e := journal.Entry{
		CycleID: report.CycleID,
		Symbol:  report.Decision.Symbol,
		Typ:     report.Decision.Typ,
		Warning: report.QueueWarning,
		Extra: map[string]any{
			"daily_ranked": report.DailyRanked,
			"h4_ranked":    report.H4Ranked,
			"failed_calls": report.FailedCalls,
		},
	}
	if err := r.journal.Append(e); err != nil {
		logger.ErrorWithErr(ctx, "Failed to journal decision", err)
	}
	if err := r.journal.CompressOlder(r.cfg.Journal.RetentionDays); err != nil {
		logger.ErrorWithErr(ctx, "Failed to compress old journals", err)
	}
}
