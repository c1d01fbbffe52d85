// Package staging owns the files exchanged with the trading platform: the
// trigger, the history exports, the per-cycle work directory and the
// published predictions.
package staging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"llm-signal-advisor/internal/interfaces"
)

const (
	TriggerFile    = "analyze.json"
	ProcessedDir   = "processed"
	DailyPrefix    = "tHistory"
	H4Prefix       = "4H-"
	InputSuffix    = ".json"
	DailyOutPrefix = "o"
	H4OutPrefix    = "o4H-"

	DailyResultFile = "aDaysResult.json"
	H4ResultFile    = "a4HResult.json"
	TraderInfoFile  = "traderInfo.json"

	SnapshotFile = "aPredict.json"
	QueueFile    = "cPredict.json"
	DecisionFile = "predict.json"
)

// work directory names sort in time order
const stampLayout = "2006-01-02T15-04-05.000Z"

func TriggerPresent(sourceDir string) bool {
	fi, err := os.Stat(filepath.Join(sourceDir, TriggerFile))
	return err == nil && fi.Mode().IsRegular()
}

// ReadTrigger returns the trigger content, the platform's account state.
func ReadTrigger(sourceDir string) (string, error) {
	b, err := os.ReadFile(filepath.Join(sourceDir, TriggerFile))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ConsumeTrigger removes the trigger. A missing trigger is not an error.
func ConsumeTrigger(sourceDir string) error {
	err := os.Remove(filepath.Join(sourceDir, TriggerFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// IsInput reports whether name is a history export the platform drops.
func IsInput(name string) bool {
	return strings.HasSuffix(name, InputSuffix) &&
		(strings.HasPrefix(name, DailyPrefix) || strings.HasPrefix(name, H4Prefix))
}

// Stage moves the history exports of sourceDir into a new timestamped
// directory under serviceDir, creating its processed subdirectory.
func Stage(sourceDir, serviceDir string, now time.Time) (string, []string, error) {
	workDir := filepath.Join(serviceDir, strings.ReplaceAll(now.UTC().Format(stampLayout), ".", "-"))
	if err := os.MkdirAll(filepath.Join(workDir, ProcessedDir), 0o755); err != nil {
		return "", nil, fmt.Errorf("create work dir: %w", err)
	}

	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		return "", nil, fmt.Errorf("read source dir: %w", err)
	}

	var staged []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !IsInput(e.Name()) {
			continue
		}
		src := filepath.Join(sourceDir, e.Name())
		if err := CopyAtomic(src, filepath.Join(workDir, e.Name())); err != nil {
			return workDir, staged, fmt.Errorf("stage %s: %w", e.Name(), err)
		}
		if err := os.Remove(src); err != nil {
			return workDir, staged, fmt.Errorf("remove staged %s: %w", e.Name(), err)
		}
		staged = append(staged, e.Name())
	}
	return workDir, staged, nil
}

// ReplaceDir creates dir if needed and removes everything inside it.
func ReplaceDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// WriteFileAtomic writes b to a temp file next to path and renames it
// into place.
func WriteFileAtomic(path string, b []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// WriteJSON writes v as 2-space indented JSON, atomically.
func WriteJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, b)
}

// CopyAtomic copies src over dst without exposing a partial dst.
func CopyAtomic(src, dst string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	return WriteFileAtomic(dst, b)
}

// DirSink stores each response as a file in Dir.
type DirSink struct {
	Dir string
}

var _ interfaces.ResponseSink = DirSink{}

func (s DirSink) Put(_ context.Context, name, text string) error {
	if name != filepath.Base(name) || name == "." || name == ".." {
		return fmt.Errorf("invalid response name %q", name)
	}
	return WriteFileAtomic(filepath.Join(s.Dir, name), []byte(text))
}
