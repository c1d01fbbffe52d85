// Package merge consolidates per-symbol service responses into one ranked
// list.
package merge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	"llm-signal-advisor/internal/extract"
	"llm-signal-advisor/internal/logger"
	"llm-signal-advisor/internal/types"
)

// NameFilter selects response files by name.
type NameFilter struct {
	Prefix        string
	Suffix        string
	ExcludePrefix string
}

func (f NameFilter) Match(name string) bool {
	if !strings.HasPrefix(name, f.Prefix) || !strings.HasSuffix(name, f.Suffix) {
		return false
	}
	return f.ExcludePrefix == "" || !strings.HasPrefix(name, f.ExcludePrefix)
}

var (
	DailyFilter = NameFilter{Prefix: "o", Suffix: ".json", ExcludePrefix: "o4H-"}
	H4Filter    = NameFilter{Prefix: "o4H-", Suffix: ".json"}
)

// Merge extracts the first JSON object of every matching file and folds
// its symbol entries together, later files overwriting earlier ones. A
// symbol keeps the position of its first appearance.
func Merge(ctx context.Context, files []types.ResponseFile, match NameFilter) types.RankedList {
	var order []string
	batch := make(map[string]any)

	for _, f := range files {
		if !match.Match(f.Name) {
			continue
		}
		obj, sn, ok := extract.FirstObject(f.Content)
		if !ok {
			logger.Warn(ctx, "No JSON object in response, skipping", "file", f.Name)
			continue
		}
		for _, sym := range sourceKeys(sn.Raw) {
			if _, seen := batch[sym]; !seen {
				order = append(order, sym)
			}
			batch[sym] = obj[sym]
		}
	}

	list := make([]types.Assessment, 0, len(order))
	for _, sym := range order {
		list = append(list, types.NewAssessment(sym, batch[sym]))
	}
	return types.Rank(list)
}

// LoadDir reads the regular files of dir in name order.
func LoadDir(dir string) ([]types.ResponseFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var files []types.ResponseFile
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		files = append(files, types.ResponseFile{Name: e.Name(), Content: string(b)})
	}
	return files, nil
}

// sourceKeys lists the keys of a raw JSON object in the order they appear.
// A repeated key is reported once, at its first position.
func sourceKeys(raw string) []string {
	var keys []string
	seen := map[string]bool{}
	gjson.Parse(raw).ForEach(func(k, _ gjson.Result) bool {
		if !seen[k.String()] {
			seen[k.String()] = true
			keys = append(keys, k.String())
		}
		return true
	})
	return keys
}
