// Package advisor asks the service to pick one trade out of the top queued
// candidates, given the platform's account state.
package advisor

import (
	"context"
	"strings"

	"github.com/tidwall/gjson"

	"llm-signal-advisor/internal/extract"
	"llm-signal-advisor/internal/interfaces"
	"llm-signal-advisor/internal/logger"
	"llm-signal-advisor/internal/prompt"
	"llm-signal-advisor/internal/staging"
	"llm-signal-advisor/internal/types"
)

type Advisor struct {
	caller  interfaces.Caller
	prompts *prompt.Builder
	sink    interfaces.ResponseSink
}

var _ interfaces.Advisor = (*Advisor)(nil)

// New returns an Advisor. sink may be nil when answers need not be kept.
func New(caller interfaces.Caller, prompts *prompt.Builder, sink interfaces.ResponseSink) *Advisor {
	return &Advisor{caller: caller, prompts: prompts, sink: sink}
}

func (a *Advisor) Advise(ctx context.Context, accountState string, top []types.Assessment) (types.Decision, bool) {
	p, err := a.prompts.Trader(accountState, top)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to build trader prompt", err)
		return types.Decision{}, false
	}

	text, err := a.caller.Call(ctx, staging.TraderInfoFile, p)
	if err != nil {
		logger.ErrorWithErr(ctx, "Advisory call failed", err)
		return types.Decision{}, false
	}

	if a.sink != nil && text != "" {
		if err := a.sink.Put(ctx, staging.TraderInfoFile, text); err != nil {
			logger.ErrorWithErr(ctx, "Failed to store advisory answer", err)
		}
	}

	d, ok := Parse(text)
	if !ok {
		logger.Warn(ctx, "Advisory answer not usable", "response_len", len(text))
	}
	return d, ok
}

// Parse accepts exactly {"<key>": {"symbol": "<sym>", "typ": "BUY"|"SELL"}}
// found anywhere in text.
func Parse(text string) (types.Decision, bool) {
	_, sn, ok := extract.FirstObject(text)
	if !ok {
		return types.Decision{}, false
	}

	root := gjson.Parse(sn.Raw)
	var (
		entries int
		inner   gjson.Result
	)
	root.ForEach(func(_, v gjson.Result) bool {
		entries++
		inner = v
		return entries < 2
	})
	if entries != 1 || !inner.IsObject() {
		return types.Decision{}, false
	}

	sym := inner.Get("symbol")
	typ := inner.Get("typ")
	if sym.Type != gjson.String || strings.TrimSpace(sym.String()) == "" || typ.Type != gjson.String {
		return types.Decision{}, false
	}

	side := strings.ToUpper(strings.TrimSpace(typ.String()))
	if side != types.SideBuy && side != types.SideSell {
		return types.Decision{}, false
	}
	return types.Decision{Symbol: strings.TrimSpace(sym.String()), Typ: side}, true
}
