package cycleobs

import (
	"context"
	"time"

	"llm-signal-advisor/internal/interfaces"
	"llm-signal-advisor/internal/logger"
	"llm-signal-advisor/internal/trace"
	"llm-signal-advisor/internal/types"
)

type observableRunner struct {
	runner interfaces.CycleRunner
}

var _ interfaces.CycleRunner = (*observableRunner)(nil)

func Wrap(runner interfaces.CycleRunner) interfaces.CycleRunner {
	return &observableRunner{
		runner: runner,
	}
}

func (o *observableRunner) RunCycle(ctx context.Context) (types.CycleReport, error) {
	ctx, span := trace.StartSpan(ctx, "cycle.Run")
	defer span.End()

	start := time.Now()

	report, err := o.runner.RunCycle(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Advisory cycle failed", err,
			"cycle_id", report.CycleID,
			"triggered", report.Triggered,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return report, err
	}

	if !report.Triggered {
		logger.DebugSkip(ctx, 1, "Advisory cycle idle",
			"cycle_id", report.CycleID,
		)
		return report, nil
	}

	logger.InfoSkip(ctx, 1, "Advisory cycle completed",
		"cycle_id", report.CycleID,
		"symbol", report.Decision.Symbol,
		"typ", report.Decision.Typ,
		"daily_calls", report.DailyCalls,
		"daily_ranked", report.DailyRanked,
		"h4_calls", report.H4Calls,
		"failed_calls", report.FailedCalls,
		"queue_warning", report.QueueWarning,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return report, nil
}
