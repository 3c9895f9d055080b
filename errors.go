package agent

import "errors"

// Sentinel errors reported by AgentStream.Err and the tool registry.
var (
	ErrBudgetExhausted = errors.New("agent: budget exhausted")
	ErrMaxTurns        = errors.New("agent: max turns reached")
	ErrMaxTokens       = errors.New("agent: max output tokens reached")
	ErrRunFailed       = errors.New("agent: run failed")
	ErrToolNotFound    = errors.New("agent: tool not found")
)
