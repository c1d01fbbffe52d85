// Package scheduler drives cycles on a fixed interval and whenever the
// trigger file appears. Cycles never overlap.
package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"llm-signal-advisor/internal/interfaces"
	"llm-signal-advisor/internal/logger"
	"llm-signal-advisor/internal/staging"
)

const defaultDebounce = 500 * time.Millisecond

type Scheduler struct {
	runner   interfaces.CycleRunner
	interval time.Duration
	watchDir string
	debounce time.Duration
}

type Option func(*Scheduler)

// WithWatch watches dir for the trigger file in addition to polling.
func WithWatch(dir string) Option { return func(s *Scheduler) { s.watchDir = dir } }

func WithDebounce(d time.Duration) Option { return func(s *Scheduler) { s.debounce = d } }

func New(runner interfaces.CycleRunner, interval time.Duration, opts ...Option) *Scheduler {
	s := &Scheduler{runner: runner, interval: interval, debounce: defaultDebounce}
	for _, o := range opts {
		o(s)
	}
	if s.interval <= 0 {
		s.interval = time.Minute
	}
	return s
}

// Run blocks until ctx is done. Cycle errors are logged and never stop
// the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	wake := make(chan struct{}, 1)

	watcher := s.openWatcher(ctx)

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		t := time.NewTicker(s.interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
				notify(wake)
			}
		}
	})

	if watcher != nil {
		group.Go(func() error {
			defer watcher.Close()
			s.watch(ctx, watcher, wake)
			return nil
		})
	}

	group.Go(func() error {
		s.runOnce(ctx)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-wake:
				s.runOnce(ctx)
			}
		}
	})

	return group.Wait()
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.runner.RunCycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.ErrorWithErr(ctx, "Cycle failed, retrying on next trigger", err)
	}
}

// openWatcher returns nil when watching is off or fails; polling still runs.
func (s *Scheduler) openWatcher(ctx context.Context) *fsnotify.Watcher {
	if s.watchDir == "" {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn(ctx, "File watcher unavailable, polling only", "error", err)
		return nil
	}
	if err := w.Add(s.watchDir); err != nil {
		_ = w.Close()
		logger.Warn(ctx, "Cannot watch source dir, polling only", "dir", s.watchDir, "error", err)
		return nil
	}
	return w
}

func (s *Scheduler) watch(ctx context.Context, w *fsnotify.Watcher, wake chan<- struct{}) {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != staging.TriggerFile || (!ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write)) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(s.debounce)
			} else {
				timer.Reset(s.debounce)
			}
			fire = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.Warn(ctx, "File watcher error", "error", err)
		case <-fire:
			fire = nil
			logger.Debug(ctx, "Trigger file changed, waking cycle")
			notify(wake)
		}
	}
}

// notify never blocks; a pending wake-up absorbs the new one.
func notify(wake chan<- struct{}) {
	select {
	case wake <- struct{}{}:
	default:
	}
}
