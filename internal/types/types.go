package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
)

const (
	SideBuy  = "BUY"
	SideSell = "SELL"
	SideHold = "HOLD"
)

// Assessment is one symbol's risk scoring. Fields keeps every value of the
// scoring object as decoded, so non-numeric BUY/SELL survive a round trip
// and are only judged when a decision is computed.
type Assessment struct {
	Symbol string
	Fields map[string]any
}

// NewAssessment builds an Assessment from a symbol key and the value found
// under it. Values other than objects carry no fields.
func NewAssessment(symbol string, data any) Assessment {
	a := Assessment{Symbol: symbol, Fields: map[string]any{}}
	if m, ok := data.(map[string]any); ok {
		for k, v := range m {
			if k == "symbol" {
				continue
			}
			a.Fields[k] = v
		}
	}
	return a
}

// Number coerces a field to a finite float.
func (a Assessment) Number(field string) (float64, bool) {
	return Numeric(a.Fields[field])
}

// Signal is max(BUY, SELL), non-numeric values counting as zero.
func (a Assessment) Signal() float64 {
	buy, _ := a.Number(SideBuy)
	sell, _ := a.Number(SideSell)
	return math.Max(buy, sell)
}

// Side returns BUY when BUY > SELL, SELL otherwise, and "" when either
// value does not coerce to a number.
func (a Assessment) Side() string {
	buy, okBuy := a.Number(SideBuy)
	sell, okSell := a.Number(SideSell)
	if !okBuy || !okSell {
		return ""
	}
	if buy > sell {
		return SideBuy
	}
	return SideSell
}

func (a Assessment) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	sym, err := json.Marshal(a.Symbol)
	if err != nil {
		return nil, err
	}
	buf.WriteString(`"symbol":`)
	buf.Write(sym)

	keys := make([]string, 0, len(a.Fields))
	for k := range a.Fields {
		if k == "symbol" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		kb, _ := json.Marshal(k)
		vb, err := json.Marshal(a.Fields[k])
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

var errAssessmentShape = errors.New("assessment must be a JSON object")

func (a *Assessment) UnmarshalJSON(b []byte) error {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	if m == nil {
		return errAssessmentShape
	}
	sym, _ := m["symbol"].(string)
	*a = NewAssessment(sym, m)
	return nil
}

// Numeric accepts JSON numbers and strings holding a finite decimal number.
func Numeric(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// RankedList is ordered by descending Signal.
type RankedList []Assessment

// Rank stable-sorts in place and returns the list.
func Rank(list []Assessment) RankedList {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Signal() > list[j].Signal()
	})
	return RankedList(list)
}

// Decision is the single output of a cycle. An empty Typ means no
// confident decision this cycle.
type Decision struct {
	Symbol string `json:"symbol"`
	Typ    string `json:"typ"`
}

func (d Decision) IsEmpty() bool {
	return d.Typ == ""
}

// SnippetSource is ordered by priority, lowest first.
type SnippetSource int

const (
	SourceFenceJSON SnippetSource = iota
	SourceFence
	SourceBalanced
)

func (s SnippetSource) String() string {
	switch s {
	case SourceFenceJSON:
		return "fence-json"
	case SourceFence:
		return "fence"
	case SourceBalanced:
		return "balanced"
	default:
		return "unknown"
	}
}

// Snippet is a JSON value recovered from free text. Start and End are byte
// offsets into the scanned text, End exclusive.
type Snippet struct {
	Raw    string
	Value  any
	Start  int
	End    int
	Source SnippetSource
}

// ResponseFile is a stored service response.
type ResponseFile struct {
	Name    string
	Content string
}
