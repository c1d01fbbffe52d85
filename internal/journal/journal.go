package journal

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type Entry struct {
	Time    string         `json:"time"`
	CycleID string         `json:"cycle_id"`
	Symbol  string         `json:"symbol"`
	Typ     string         `json:"typ"`
	Warning string         `json:"warning,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// Journal appends one JSON line per decision to a daily file.
type Journal struct {
	mu  sync.Mutex
	dir string
	now func() time.Time
}

func New(dir string) *Journal {
	if dir == "" {
		dir = "logs"
	}
	return &Journal{dir: dir, now: time.Now}
}

func (j *Journal) decisionsFilepath(t time.Time) string {
	return filepath.Join(j.dir, "decisions", t.UTC().Format("2006-01-02")+".txt")
}

func (j *Journal) Append(e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := j.now()
	e.Time = now.UTC().Format(time.RFC3339)
	p := j.decisionsFilepath(now)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(f, string(b))
	return err
}

// CompressOlder gzips .txt journals last modified before the retention
// window. Files that fail are left for the next run.
func (j *Journal) CompressOlder(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	cutoff := j.now().AddDate(0, 0, -retentionDays)
	return filepath.WalkDir(j.dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() || filepath.Ext(p) != ".txt" {
			return nil
		}
		info, er := d.Info()
		if er != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		// already compressed by an interrupted run
		if _, e2 := os.Stat(gz); e2 == nil {
			_ = os.Remove(p)
			return nil
		}
		if e3 := gzipFile(p, gz); e3 == nil {
			_ = os.Remove(p)
		}
		return nil
	})
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		_ = gw.Close()
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := gw.Close(); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}
