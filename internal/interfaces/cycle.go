package interfaces

import (
	"context"

	"llm-signal-advisor/internal/types"
)

// CycleRunner runs one stage -> call -> merge -> decide cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) (types.CycleReport, error)
}
