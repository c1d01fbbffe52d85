// Package prompt renders the service prompts from text templates.
package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"text/template"

	"llm-signal-advisor/internal/types"
)

const defaultDaily = `You are a financial advisor.
I am sending one month of daily price history for currency pairs.
Based on fundamental analysis available on the web, candlestick formations and the data provided, give a percentage risk assessment (100 = certainty, 0 = risk) for
- BUY
- SELL
- HOLD
so that together they add up to 100.
The data is
` + "`{{.Content}}`" + `
Reply concisely in JSON, where the key is the currency pair and the body is the assessment.
Assess every pair sent.`

const defaultH4 = `You are a financial advisor. I am sending one month of 4-hour price history for the currency pair {{.Symbol}}.
Based on fundamental analysis available on the web, candlestick formations and the data provided, give a percentage risk assessment (100 = certainty, 0 = risk) for
- BUY
- SELL
- HOLD
so that together they add up to 100.
The data is
` + "`{{.Content}}`" + `
Reply concisely in JSON, where the key is the currency pair and the body is the assessment.`

const defaultTrader = `You have the following data:

1. Current state of the trading account:
{{.AccountState}}

2. Currency pair predictions based on candlestick formations:
{{.Candidates}}

These are the pairs selected as the most likely to trade.

Task:
- Analyse the predictions in the context of the account state and the open positions.
- Pick exactly one currency pair that is the most suitable to trade now.
- Keep the sum of open positions from becoming too risky.
- Reply **only** with valid JSON, no other text or comments.
- The structure must be exactly:
  {"EURNZD_enc": {"symbol":"EURNZD","typ":"BUY"}}
- Use the pair key (for example "EURNZD_enc") and as its value an object with 'symbol' and 'typ' taken from the prediction.`

// Builder holds the three parsed templates.
type Builder struct {
	daily  *template.Template
	h4     *template.Template
	trader *template.Template
}

// Paths of template files replacing the defaults. Empty keeps the default.
type Paths struct {
	Daily  string
	H4     string
	Trader string
}

func New(p Paths) (*Builder, error) {
	daily, err := load("daily", p.Daily, defaultDaily)
	if err != nil {
		return nil, err
	}
	h4, err := load("h4", p.H4, defaultH4)
	if err != nil {
		return nil, err
	}
	trader, err := load("trader", p.Trader, defaultTrader)
	if err != nil {
		return nil, err
	}
	return &Builder{daily: daily, h4: h4, trader: trader}, nil
}

// Default returns a Builder using the built-in templates.
func Default() *Builder {
	b, err := New(Paths{})
	if err != nil {
		panic(err)
	}
	return b
}

func load(name, path, fallback string) (*template.Template, error) {
	text := fallback
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s prompt: %w", name, err)
		}
		text = string(b)
	}
	t, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse %s prompt: %w", name, err)
	}
	return t, nil
}

func (b *Builder) Daily(content string) (string, error) {
	return render(b.daily, struct{ Content string }{content})
}

func (b *Builder) H4(symbol, content string) (string, error) {
	return render(b.h4, struct{ Symbol, Content string }{symbol, content})
}

// Trader renders the advisory prompt with the candidates as compact JSON.
func (b *Builder) Trader(accountState string, top []types.Assessment) (string, error) {
	cands, err := json.Marshal(top)
	if err != nil {
		return "", err
	}
	return render(b.trader, struct{ AccountState, Candidates string }{accountState, string(cands)})
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
