package agent

import (
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/shopspring/decimal"
)

// Session holds the conversation state carried across runs.
type Session struct {
	ID        string
	Messages  []anthropic.MessageParam
	Metadata  SessionMeta
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SessionMeta contains summary statistics for a session, updated when a run
// finishes.
type SessionMeta struct {
	Model       anthropic.Model
	TotalCost   decimal.Decimal
	TotalTokens Usage
	NumTurns    int
	ToolCalls   int
}

// NewSession creates a new empty session.
func NewSession() *Session {
	now := time.Now()
	return &Session{
		ID:        GenerateID(PrefixSession),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *Session) record(model anthropic.Model, r *ResultEvent, toolCalls int) {
	s.Metadata.Model = model
	s.Metadata.TotalCost = s.Metadata.TotalCost.Add(r.TotalCost)
	s.Metadata.TotalTokens.add(r.Usage)
	s.Metadata.NumTurns += r.NumTurns
	s.Metadata.ToolCalls += toolCalls
	s.UpdatedAt = time.Now()
}
