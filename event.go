package agent

import (
	"encoding/json"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/shopspring/decimal"

	"github.com/armatrix/agent-lessons/telemetry"
)

// EventType identifies the kind of event emitted by an AgentStream.
type EventType string

const (
	EventSystem     EventType = "system"
	EventAssistant  EventType = "assistant"
	EventStream     EventType = "stream"
	EventToolUse    EventType = "tool_use"
	EventToolResult EventType = "tool_result"
	EventResult     EventType = "result"
)

// Event is the interface implemented by all events emitted through AgentStream.
type Event interface {
	Type() EventType
}

// SystemEvent is emitted once at the start of a run with initialization info.
type SystemEvent struct {
	SessionID string
	Model     anthropic.Model
}

func (e *SystemEvent) Type() EventType { return EventSystem }

// AssistantEvent is emitted when the LLM produces a complete response.
type AssistantEvent struct {
	Message anthropic.Message
}

func (e *AssistantEvent) Type() EventType { return EventAssistant }

// StreamEvent is emitted for streaming text deltas as they arrive.
type StreamEvent struct {
	Delta string
}

func (e *StreamEvent) Type() EventType { return EventStream }

// ToolUseEvent is emitted when the loop starts handling a tool_use block.
type ToolUseEvent struct {
	ToolUseID string
	Name      string
	Input     json.RawMessage
	StartedAt time.Time
}

func (e *ToolUseEvent) Type() EventType { return EventToolUse }

// CallStart reports the event as the start of a telemetry call. A nil event
// yields a start without a call id.
func (e *ToolUseEvent) CallStart() telemetry.StartEvent {
	if e == nil {
		return telemetry.StartEvent{}
	}
	return telemetry.StartEvent{
		CallID:    e.ToolUseID,
		Kind:      e.Name,
		Timestamp: e.StartedAt,
		Input:     e.Input,
	}
}

// ToolResultEvent closes the ToolUseEvent with the same ToolUseID. It is
// emitted for every tool_use block, including blocked, denied and unknown
// tools.
type ToolResultEvent struct {
	ToolUseID string
	Name      string
	Output    string
	IsError   bool
	EndedAt   time.Time
}

func (e *ToolResultEvent) Type() EventType { return EventToolResult }

// CallCompletion reports the event as the completion of a telemetry call. A
// nil event yields a completion without a call id.
func (e *ToolResultEvent) CallCompletion() telemetry.CompletionEvent {
	if e == nil {
		return telemetry.CompletionEvent{}
	}
	outcome := telemetry.OutcomeSuccess
	if e.IsError {
		outcome = telemetry.OutcomeFailure
	}
	return telemetry.CompletionEvent{
		CallID:    e.ToolUseID,
		Timestamp: e.EndedAt,
		Outcome:   outcome,
		Result:    e.Output,
	}
}

// Usage tracks token consumption for a run.
type Usage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheReadInputTokens     int64
	CacheCreationInputTokens int64
}

func (u *Usage) add(o Usage) {
	u.InputTokens += o.InputTokens
	u.OutputTokens += o.OutputTokens
	u.CacheReadInputTokens += o.CacheReadInputTokens
	u.CacheCreationInputTokens += o.CacheCreationInputTokens
}

// ResultEvent is emitted once at the end of a run with summary information.
type ResultEvent struct {
	// Subtype indicates the outcome: "success", "error_max_turns",
	// "error_max_budget_usd", "error_max_tokens" or "error_during_execution".
	Subtype    string
	SessionID  string
	RunID      string // Also visible to tools through ContextRun.
	DurationMs int64
	IsError    bool
	NumTurns   int
	TotalCost  decimal.Decimal
	Usage      Usage
	Errors     []string
}

func (e *ResultEvent) Type() EventType { return EventResult }

var (
	_ telemetry.CallStarter   = (*ToolUseEvent)(nil)
	_ telemetry.CallCompleter = (*ToolResultEvent)(nil)
)
