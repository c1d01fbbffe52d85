// Package llm adapts a text generator into the call discipline the service
// expects: a fixed pause after every answer and a long pause when throttled.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"llm-signal-advisor/internal/interfaces"
	"llm-signal-advisor/internal/logger"
)

const (
	DefaultCooldown = 5 * time.Second
	DefaultBackoff  = 36 * time.Second
)

// ErrRateLimited is wrapped by generators when the service answers 429.
var ErrRateLimited = errors.New("llm: rate limited")

// CallError reports a failed call. Retryable is set for throttling; the
// input is expected to be tried again on a later cycle.
type CallError struct {
	Input     string
	Retryable bool
	Err       error
}

func (e *CallError) Error() string {
	kind := "fatal"
	if e.Retryable {
		kind = "retryable"
	}
	return fmt.Sprintf("llm call for %q failed (%s): %v", e.Input, kind, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a retryable CallError.
func IsRetryable(err error) bool {
	var ce *CallError
	return errors.As(err, &ce) && ce.Retryable
}

// Caller wraps a Generator. It never persists responses.
type Caller struct {
	gen      interfaces.Generator
	cooldown time.Duration
	backoff  time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

var _ interfaces.Caller = (*Caller)(nil)

type Option func(*Caller)

func WithCooldown(d time.Duration) Option { return func(c *Caller) { c.cooldown = d } }

func WithBackoff(d time.Duration) Option { return func(c *Caller) { c.backoff = d } }

// WithSleep replaces the wait function, mainly for tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Caller) { c.sleep = fn }
}

func NewCaller(gen interfaces.Generator, opts ...Option) *Caller {
	c := &Caller{
		gen:      gen,
		cooldown: DefaultCooldown,
		backoff:  DefaultBackoff,
		sleep:    sleepCtx,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Call sends prompt for the named input. An empty answer is a success.
func (c *Caller) Call(ctx context.Context, input, prompt string) (string, error) {
	text, err := c.gen.Generate(ctx, prompt)
	if err == nil {
		if err := c.sleep(ctx, c.cooldown); err != nil {
			return text, err
		}
		return text, nil
	}

	if errors.Is(err, ErrRateLimited) {
		logger.Warn(ctx, "Service throttled, backing off", "input", input, "backoff", c.backoff)
		if serr := c.sleep(ctx, c.backoff); serr != nil {
			return "", serr
		}
		return "", &CallError{Input: input, Retryable: true, Err: err}
	}

	return "", &CallError{Input: input, Retryable: false, Err: err}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
