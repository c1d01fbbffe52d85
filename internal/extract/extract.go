// Package extract recovers JSON values from free-form model output: fenced
// ```json blocks, untagged fences holding JSON among commentary, and bare
// JSON embedded in prose.
package extract

import (
	"encoding/json"
	"sort"

	"llm-signal-advisor/internal/types"
)

// Snippets returns every JSON value found in text, ordered by source
// priority (fenced json, other fence, balanced scan), then by offsets.
// Only the first snippet of each (start, end) span is kept. It never fails;
// the result is empty when nothing parses.
func Snippets(text string) []types.Snippet {
	if text == "" {
		return nil
	}

	var found []types.Snippet
	buf := []byte(text)
	fences := findFences(text)

	for _, f := range fences {
		if !f.isJSON() {
			continue
		}
		start, end := trimmedSpan(text, f.contentStart, f.contentEnd)
		if v, ok := parseBytes(buf[start:end]); ok {
			found = append(found, types.Snippet{
				Raw: text[start:end], Value: v, Start: start, End: end, Source: types.SourceFenceJSON,
			})
		}
	}

	for _, f := range fences {
		if f.isJSON() {
			continue
		}
		interior := text[f.contentStart:f.contentEnd]
		found = collect(found, text, buf, f.contentStart, scanBalanced(interior), types.SourceFence)
	}

	found = collect(found, text, buf, 0, scanBalanced(text), types.SourceBalanced)

	return dedup(found)
}

// FirstObject returns the first snippet whose value is a JSON object.
func FirstObject(text string) (map[string]any, types.Snippet, bool) {
	for _, sn := range Snippets(text) {
		if obj, ok := sn.Value.(map[string]any); ok {
			return obj, sn, true
		}
	}
	return nil, types.Snippet{}, false
}

// maxDepth is the nesting limit of encoding/json. Deeper candidates cannot
// parse and go straight to their children.
const maxDepth = 10000

// collect parses each candidate; candidates that fail fall back to their
// nested pairs, in text order. Candidate offsets are relative to base in
// text, and buf holds the bytes of text.
func collect(dst []types.Snippet, text string, buf []byte, base int, cands []candidate, src types.SnippetSource) []types.Snippet {
	pending := [][]candidate{cands}
	for len(pending) > 0 {
		top := pending[len(pending)-1]
		if len(top) == 0 {
			pending = pending[:len(pending)-1]
			continue
		}
		c := top[0]
		pending[len(pending)-1] = top[1:]

		start, end := base+c.start, base+c.end
		if c.depth <= maxDepth {
			if v, ok := parseBytes(buf[start:end]); ok {
				dst = append(dst, types.Snippet{
					Raw: text[start:end], Value: v, Start: start, End: end, Source: src,
				})
				continue
			}
		}
		if len(c.children) > 0 {
			pending = append(pending, c.children)
		}
	}
	return dst
}

func parseBytes(b []byte) (any, bool) {
	if len(b) == 0 || !json.Valid(b) {
		return nil, false
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, false
	}
	return v, true
}

func dedup(in []types.Snippet) []types.Snippet {
	sort.SliceStable(in, func(i, j int) bool {
		a, b := in[i], in[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.End < b.End
	})

	type spanKey struct{ start, end int }
	seen := make(map[spanKey]bool, len(in))
	out := make([]types.Snippet, 0, len(in))
	for _, sn := range in {
		k := spanKey{sn.Start, sn.End}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, sn)
	}
	return out
}
