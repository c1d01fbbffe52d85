package types

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumeric(t *testing.T) {
	cases := []struct {
		in   any
		want float64
		ok   bool
	}{
		{float64(70), 70, true},
		{"55.5", 55.5, true},
		{" 12 ", 12, true},
		{json.Number("3"), 3, true},
		{"", 0, false},
		{"high", 0, false},
		{nil, 0, false},
		{true, 0, false},
		{map[string]any{}, 0, false},
		{[]any{1.0}, 0, false},
		{math.Inf(1), 0, false},
		{"NaN", 0, false},
	}
	for _, c := range cases {
		got, ok := Numeric(c.in)
		assert.Equal(t, c.ok, ok, "input %#v", c.in)
		assert.Equal(t, c.want, got, "input %#v", c.in)
	}
}

func TestSignalAndSide(t *testing.T) {
	a := NewAssessment("EURUSD", map[string]any{"BUY": 70.0, "SELL": "20", "HOLD": 10.0})
	assert.Equal(t, 70.0, a.Signal())
	assert.Equal(t, SideBuy, a.Side())

	tie := NewAssessment("GBPUSD", map[string]any{"BUY": 40.0, "SELL": 40.0})
	assert.Equal(t, SideSell, tie.Side())

	bad := NewAssessment("USDJPY", map[string]any{"BUY": "strong", "SELL": 30.0})
	assert.Equal(t, 30.0, bad.Signal())
	assert.Empty(t, bad.Side())

	none := NewAssessment("AUDUSD", "not an object")
	assert.Empty(t, none.Fields)
	assert.Equal(t, 0.0, none.Signal())
}

func TestRankIsStableDescending(t *testing.T) {
	list := []Assessment{
		NewAssessment("A", map[string]any{"BUY": 10.0}),
		NewAssessment("B", map[string]any{"SELL": 80.0}),
		NewAssessment("C", map[string]any{"BUY": 10.0}),
		NewAssessment("D", map[string]any{"BUY": "x"}),
	}
	ranked := Rank(list)
	var order []string
	for _, a := range ranked {
		order = append(order, a.Symbol)
	}
	assert.Equal(t, []string{"B", "A", "C", "D"}, order)
}

func TestAssessmentJSONSymbolFirst(t *testing.T) {
	a := NewAssessment("EURUSD", map[string]any{"SELL": 20.0, "BUY": "n/a", "symbol": "ignored"})
	b, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Equal(t, `{"symbol":"EURUSD","BUY":"n/a","SELL":20}`, string(b))

	var back Assessment
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, a, back)
}

func TestAssessmentUnmarshalRejectsNonObject(t *testing.T) {
	var a Assessment
	assert.Error(t, json.Unmarshal([]byte(`null`), &a))
	assert.Error(t, json.Unmarshal([]byte(`[1]`), &a))
}

func TestDecisionIsEmpty(t *testing.T) {
	assert.True(t, Decision{Symbol: "EURUSD"}.IsEmpty())
	assert.False(t, Decision{Symbol: "EURUSD", Typ: SideBuy}.IsEmpty())
}

func TestSideNullScoreIsUndecided(t *testing.T) {
	a := NewAssessment("EURUSD", map[string]any{"BUY": nil, "SELL": 40.0})
	assert.Empty(t, a.Side())
	assert.Equal(t, 40.0, a.Signal())
}
