package budget

import (
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/shopspring/decimal"
)

// Tracker accumulates usage and cost across API calls of one run.
// It is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	limit   decimal.Decimal // zero = unlimited
	pricing Table
	usage   Usage
	cost    decimal.Decimal
	byModel map[anthropic.Model]decimal.Decimal
}

// NewTracker creates a tracker. A zero limit never exhausts.
func NewTracker(limit decimal.Decimal, pricing Table) *Tracker {
	return &Tracker{
		limit:   limit,
		pricing: pricing,
		byModel: make(map[anthropic.Model]decimal.Decimal),
	}
}

// Record adds one API call and returns its cost. Unknown models count
// tokens but cost nothing.
func (t *Tracker) Record(model anthropic.Model, u Usage) decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.usage = t.usage.add(u)
	p, ok := t.pricing.Lookup(model)
	if !ok {
		return decimal.Zero
	}
	c := p.Cost(u)
	t.cost = t.cost.Add(c)
	t.byModel[model] = t.byModel[model].Add(c)
	return c
}

// Cost returns the cumulative cost.
func (t *Tracker) Cost() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cost
}

// Usage returns the cumulative token usage.
func (t *Tracker) Usage() Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.usage
}

// ByModel returns a copy of the cost per model.
func (t *Tracker) ByModel() map[anthropic.Model]decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[anthropic.Model]decimal.Decimal, len(t.byModel))
	for m, c := range t.byModel {
		out[m] = c
	}
	return out
}

// Remaining returns the unspent budget and false when there is no limit.
func (t *Tracker) Remaining() (decimal.Decimal, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.limit.IsZero() {
		return decimal.Zero, false
	}
	return t.limit.Sub(t.cost), true
}

// Exhausted reports whether spend has reached the limit.
func (t *Tracker) Exhausted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.limit.IsZero() && t.cost.GreaterThanOrEqual(t.limit)
}
