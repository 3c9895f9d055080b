// Package budget prices API usage and enforces a spend limit.
package budget

import (
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/shopspring/decimal"
)

// Usage holds token counts for a single API call.
type Usage struct {
	InputTokens              int
	OutputTokens             int
	CacheReadInputTokens     int
	CacheCreationInputTokens int
}

func (u Usage) add(o Usage) Usage {
	return Usage{
		InputTokens:              u.InputTokens + o.InputTokens,
		OutputTokens:             u.OutputTokens + o.OutputTokens,
		CacheReadInputTokens:     u.CacheReadInputTokens + o.CacheReadInputTokens,
		CacheCreationInputTokens: u.CacheCreationInputTokens + o.CacheCreationInputTokens,
	}
}

// totalInput is the prompt size used to decide long-context pricing.
func (u Usage) totalInput() int {
	return u.InputTokens + u.CacheReadInputTokens + u.CacheCreationInputTokens
}

// Pricing holds per-model token prices in USD per million tokens.
type Pricing struct {
	Input       decimal.Decimal
	Output      decimal.Decimal
	LongInput   decimal.Decimal // applies to every input token once the prompt exceeds LongContext
	LongOutput  decimal.Decimal
	CacheWrite  decimal.Decimal
	CacheRead   decimal.Decimal
	LongContext int // 0 = no long-context tier
}

var million = decimal.NewFromInt(1_000_000)

func perMTok(tokens int, rate decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(int64(tokens)).Mul(rate).Div(million)
}

// Cost prices one API call.
func (p Pricing) Cost(u Usage) decimal.Decimal {
	in, out := p.Input, p.Output
	if p.LongContext > 0 && u.totalInput() > p.LongContext {
		in, out = p.LongInput, p.LongOutput
	}
	return perMTok(u.InputTokens, in).
		Add(perMTok(u.CacheReadInputTokens, p.CacheRead)).
		Add(perMTok(u.CacheCreationInputTokens, p.CacheWrite)).
		Add(perMTok(u.OutputTokens, out))
}

// Table maps model ids to prices.
type Table map[anthropic.Model]Pricing

// Lookup returns the pricing for model. Dated snapshots such as
// "claude-sonnet-4-5-20250929" fall back to their alias.
func (t Table) Lookup(model anthropic.Model) (Pricing, bool) {
	if p, ok := t[model]; ok {
		return p, true
	}
	var best anthropic.Model
	for alias := range t {
		if strings.HasPrefix(string(model), string(alias)+"-") && len(alias) > len(best) {
			best = alias
		}
	}
	if best == "" {
		return Pricing{}, false
	}
	return t[best], true
}

func usd(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

// DefaultPricing contains list prices for current Claude models.
var DefaultPricing = Table{
	anthropic.ModelClaudeOpus4_6: {
		Input: usd(5), Output: usd(25),
		LongInput: usd(10), LongOutput: usd(37.5),
		CacheWrite: usd(6.25), CacheRead: usd(0.5),
		LongContext: 200_000,
	},
	anthropic.ModelClaudeSonnet4_5: {
		Input: usd(3), Output: usd(15),
		LongInput: usd(6), LongOutput: usd(22.5),
		CacheWrite: usd(3.75), CacheRead: usd(0.3),
		LongContext: 200_000,
	},
	anthropic.ModelClaudeHaiku4_5: {
		Input: usd(1), Output: usd(5),
		CacheWrite: usd(1.25), CacheRead: usd(0.1),
	},
}
