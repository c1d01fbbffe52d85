package interfaces

import (
	"context"

	"llm-signal-advisor/internal/types"
)

// QueueStore persists the raw decision queue. Load reports exists=false
// when nothing has been persisted yet.
type QueueStore interface {
	Load(ctx context.Context) (data []byte, exists bool, err error)
	Save(ctx context.Context, data []byte) error
}

// Advisor picks one symbol/side pair from the top ranked assessments given
// the current account state. ok is false when the answer is unusable.
type Advisor interface {
	Advise(ctx context.Context, accountState string, top []types.Assessment) (decision types.Decision, ok bool)
}

// DecisionQueue turns ranked batches into one decision per cycle.
type DecisionQueue interface {
	Advance(ctx context.Context, fresh types.RankedList, accountState string) (types.Decision, error)
}
