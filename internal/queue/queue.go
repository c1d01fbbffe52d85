// Package queue turns a ranked batch into one decision per cycle. The
// pending entries are persisted between cycles and consumed front first.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"llm-signal-advisor/internal/interfaces"
	"llm-signal-advisor/internal/logger"
	"llm-signal-advisor/internal/types"
)

const DefaultThreshold = 5

var (
	// ErrCorruptQueue is returned when the persisted state is not a JSON
	// array of objects. The store is left untouched.
	ErrCorruptQueue = errors.New("queue: persisted state is not an array of objects")
	// ErrEmptyQueue is returned while the persisted queue holds no entries.
	ErrEmptyQueue = errors.New("queue: persisted queue is empty")
)

// Queue is not safe for concurrent Advance calls on the same store.
type Queue struct {
	Store     interfaces.QueueStore
	Advisor   interfaces.Advisor
	Threshold int
}

var _ interfaces.DecisionQueue = (*Queue)(nil)

func New(store interfaces.QueueStore, advisor interfaces.Advisor, threshold int) *Queue {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Queue{Store: store, Advisor: advisor, Threshold: threshold}
}

// Advance produces this cycle's decision. fresh seeds the store only when
// nothing is persisted yet; a nil fresh list never seeds.
func (q *Queue) Advance(ctx context.Context, fresh types.RankedList, accountState string) (types.Decision, error) {
	raw, ok, err := q.Store.Load(ctx)
	if err != nil {
		return types.Decision{}, fmt.Errorf("load queue: %w", err)
	}

	if !ok {
		if fresh == nil {
			logger.Debug(ctx, "No queue and no fresh ranking, nothing to decide")
			return types.Decision{}, nil
		}
		raw, err = json.MarshalIndent(fresh, "", "  ")
		if err != nil {
			return types.Decision{}, fmt.Errorf("encode queue seed: %w", err)
		}
		if err := q.Store.Save(ctx, raw); err != nil {
			return types.Decision{}, fmt.Errorf("seed queue: %w", err)
		}
		logger.Info(ctx, "Queue seeded from fresh ranking", "entries", len(fresh))
	}

	pending, err := decode(raw)
	if err != nil {
		return types.Decision{}, err
	}

	threshold := q.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	if len(pending) > threshold && q.Advisor != nil {
		top := append([]types.Assessment(nil), pending[:threshold]...)
		if d, ok := q.Advisor.Advise(ctx, accountState, top); ok && d.Symbol != "" && d.Typ != "" {
			logger.Decision(ctx, d.Symbol, d.Typ, "advisor", "pending", len(pending))
			return d, nil
		}
		logger.Warn(ctx, "Advisor gave no usable answer, popping front", "pending", len(pending))
	}

	front := pending[0]
	d := types.Decision{Symbol: front.Symbol, Typ: front.Side()}

	rest := pending[1:]
	out, err := json.MarshalIndent(rest, "", "  ")
	if err != nil {
		return types.Decision{}, fmt.Errorf("encode queue: %w", err)
	}
	if err := q.Store.Save(ctx, out); err != nil {
		return types.Decision{}, fmt.Errorf("save queue: %w", err)
	}

	logger.Decision(ctx, d.Symbol, d.Typ, "queue", "remaining", len(rest))
	return d, nil
}

func decode(raw []byte) ([]types.Assessment, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptQueue, err)
	}
	if items == nil {
		return nil, ErrCorruptQueue
	}
	if len(items) == 0 {
		return nil, ErrEmptyQueue
	}
	out := make([]types.Assessment, 0, len(items))
	for i, it := range items {
		var a types.Assessment
		if err := json.Unmarshal(it, &a); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrCorruptQueue, i, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// IsStructural reports whether err is a queue state problem rather than a
// storage failure.
func IsStructural(err error) bool {
	return errors.Is(err, ErrCorruptQueue) || errors.Is(err, ErrEmptyQueue)
}
