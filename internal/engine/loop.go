// Package engine runs the agent loop: stream a turn, execute the requested
// tools, feed the results back, repeat.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/shopspring/decimal"
)

// Result subtypes reported through EventSink.OnResult.
const (
	SubtypeSuccess    = "success"
	SubtypeMaxTurns   = "error_max_turns"
	SubtypeMaxBudget  = "error_max_budget_usd"
	SubtypeMaxTokens  = "error_max_tokens"
	SubtypeDuringExec = "error_during_execution"
)

// MessageStreamer abstracts the Anthropic Messages API so the loop can be tested
// with a mock. Production code passes the real client.Messages.NewStreaming.
type MessageStreamer interface {
	NewStreaming(ctx context.Context, params anthropic.MessageNewParams) *ssestream.Stream[anthropic.MessageStreamEventUnion]
}

type messageServiceAdapter struct {
	svc *anthropic.MessageService
}

func (a *messageServiceAdapter) NewStreaming(ctx context.Context, params anthropic.MessageNewParams) *ssestream.Stream[anthropic.MessageStreamEventUnion] {
	return a.svc.NewStreaming(ctx, params)
}

// NewMessageStreamer wraps a real anthropic.MessageService as a MessageStreamer.
func NewMessageStreamer(svc *anthropic.MessageService) MessageStreamer {
	return &messageServiceAdapter{svc: svc}
}

// ToolExecutor executes a tool by name with raw JSON input.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, input json.RawMessage) (content string, isError bool, err error)
	ListForAPI() []anthropic.ToolUnionParam
}

// ToolCall identifies one tool_use block while it is being processed.
type ToolCall struct {
	ID    string
	Name  string
	Input json.RawMessage
	At    time.Time
}

// ToolOutcome is the result reported for a ToolCall.
type ToolOutcome struct {
	Output  string
	IsError bool
	At      time.Time
}

// EventSink receives events from the loop. The loop calls these methods instead
// of importing root package event types, breaking the import cycle.
//
// For every tool_use block the loop calls OnToolUse exactly once and then
// OnToolResult exactly once, whether the tool ran, failed, was blocked by a
// hook, was denied, or does not exist.
type EventSink interface {
	OnSystem(sessionID string, model anthropic.Model)
	OnStream(delta string)
	OnAssistant(msg anthropic.Message)
	OnToolUse(call ToolCall)
	OnToolResult(call ToolCall, out ToolOutcome)
	OnResult(info ResultInfo)
}

// BudgetUsage holds token counts for a single API call.
type BudgetUsage struct {
	InputTokens   int
	OutputTokens  int
	CacheRead     int
	CacheCreation int
}

// BudgetChecker prices usage and enforces the spend limit.
// Nil means no cost tracking.
type BudgetChecker interface {
	RecordUsage(model anthropic.Model, usage BudgetUsage)
	Exhausted() bool
	TotalCost() decimal.Decimal
}

// HookPreToolResult is the result of running pre-tool-use hooks.
type HookPreToolResult struct {
	Block        bool
	Reason       string
	UpdatedInput json.RawMessage
}

// HookRunner executes hooks at the points the loop exposes.
// Nil means no hooks.
type HookRunner interface {
	RunPreToolUse(ctx context.Context, sessionID string, call ToolCall) (*HookPreToolResult, error)
	RunPostToolUse(ctx context.Context, sessionID string, call ToolCall, output string) error
	RunPostToolFailure(ctx context.Context, sessionID string, call ToolCall, toolErr error) error
	RunStop(ctx context.Context, sessionID string) error
	RunSessionStart(ctx context.Context, sessionID string) error
	RunSessionEnd(ctx context.Context, sessionID string) error
}

// Permission decisions returned by PermissionChecker.
const (
	PermissionAllow = 0
	PermissionDeny  = 1
	PermissionAsk   = 2
)

// PermissionChecker evaluates whether a tool is allowed to execute.
// Nil means all tools are allowed.
type PermissionChecker interface {
	Check(ctx context.Context, toolName string, input json.RawMessage) (int, error)
}

// ResultInfo contains the data for a result event.
type ResultInfo struct {
	Subtype                  string
	SessionID                string
	IsError                  bool
	NumTurns                 int
	DurationMs               int64
	InputTokens              int64
	OutputTokens             int64
	CacheReadInputTokens     int64
	CacheCreationInputTokens int64
	TotalCost                decimal.Decimal
	Errors                   []string
}

// LoopConfig holds everything the agent loop needs to execute.
type LoopConfig struct {
	Streamer  MessageStreamer
	Tools     ToolExecutor
	Model     anthropic.Model
	MaxTokens int
	MaxTurns  int

	// Messages is the mutable message history. The loop appends to it.
	Messages *[]anthropic.MessageParam

	// SystemPrompt is sent with every API call.
	SystemPrompt []anthropic.TextBlockParam

	SessionID string
	Sink      EventSink

	Budget     BudgetChecker
	Hooks      HookRunner
	Permission PermissionChecker

	// Now stamps tool events and hook inputs. Defaults to time.Now.
	Now func() time.Time
}

// runState accumulates totals for the final ResultInfo.
type runState struct {
	cfg           LoopConfig
	start         time.Time
	turns         int
	inputTokens   int64
	outputTokens  int64
	cacheRead     int64
	cacheCreation int64
}

func (s *runState) finish(subtype string, errs ...string) {
	info := ResultInfo{
		Subtype:                  subtype,
		SessionID:                s.cfg.SessionID,
		IsError:                  subtype != SubtypeSuccess,
		NumTurns:                 s.turns,
		DurationMs:               time.Since(s.start).Milliseconds(),
		InputTokens:              s.inputTokens,
		OutputTokens:             s.outputTokens,
		CacheReadInputTokens:     s.cacheRead,
		CacheCreationInputTokens: s.cacheCreation,
		Errors:                   errs,
	}
	if s.cfg.Budget != nil {
		info.TotalCost = s.cfg.Budget.TotalCost()
	}
	s.cfg.Sink.OnResult(info)
}

func (s *runState) record(msg anthropic.Message) {
	s.inputTokens += msg.Usage.InputTokens
	s.outputTokens += msg.Usage.OutputTokens
	s.cacheRead += msg.Usage.CacheReadInputTokens
	s.cacheCreation += msg.Usage.CacheCreationInputTokens

	if s.cfg.Budget != nil {
		s.cfg.Budget.RecordUsage(s.cfg.Model, BudgetUsage{
			InputTokens:   int(msg.Usage.InputTokens),
			OutputTokens:  int(msg.Usage.OutputTokens),
			CacheRead:     int(msg.Usage.CacheReadInputTokens),
			CacheCreation: int(msg.Usage.CacheCreationInputTokens),
		})
	}
}

// RunLoop is the core agent execution loop. It runs in the calling goroutine
// and calls Sink methods to emit events. The caller is responsible for
// channel management.
func RunLoop(ctx context.Context, cfg LoopConfig) {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &runState{cfg: cfg, start: time.Now()}

	cfg.Sink.OnSystem(cfg.SessionID, cfg.Model)

	if cfg.Hooks != nil {
		_ = cfg.Hooks.RunSessionStart(ctx, cfg.SessionID)
		defer func() { _ = cfg.Hooks.RunSessionEnd(ctx, cfg.SessionID) }()
	}

	for {
		if err := ctx.Err(); err != nil {
			s.finish(SubtypeDuringExec, err.Error())
			return
		}

		msg, err := streamTurn(ctx, cfg)
		if err != nil {
			s.finish(SubtypeDuringExec, err.Error())
			return
		}
		s.turns++
		s.record(msg)

		cfg.Sink.OnAssistant(msg)
		*cfg.Messages = append(*cfg.Messages, msg.ToParam())

		if cfg.Budget != nil && cfg.Budget.Exhausted() {
			s.finish(SubtypeMaxBudget, "budget exhausted")
			return
		}

		switch msg.StopReason {
		case anthropic.StopReasonToolUse:
			results := processToolUse(ctx, cfg, msg.Content)
			*cfg.Messages = append(*cfg.Messages, anthropic.NewUserMessage(results...))

		case anthropic.StopReasonMaxTokens:
			runStopHooks(ctx, cfg)
			s.finish(SubtypeMaxTokens, "max_tokens reached")
			return

		default:
			runStopHooks(ctx, cfg)
			s.finish(SubtypeSuccess)
			return
		}

		if cfg.MaxTurns > 0 && s.turns >= cfg.MaxTurns {
			runStopHooks(ctx, cfg)
			s.finish(SubtypeMaxTurns, "max turns reached")
			return
		}
	}
}

// streamTurn performs one streaming API call and accumulates the message.
func streamTurn(ctx context.Context, cfg LoopConfig) (anthropic.Message, error) {
	params := anthropic.MessageNewParams{
		Model:     cfg.Model,
		MaxTokens: int64(cfg.MaxTokens),
		Messages:  *cfg.Messages,
	}
	if len(cfg.SystemPrompt) > 0 {
		params.System = cfg.SystemPrompt
	}
	if tools := cfg.Tools.ListForAPI(); len(tools) > 0 {
		params.Tools = tools
	}

	stream := cfg.Streamer.NewStreaming(ctx, params)
	defer stream.Close()

	msg := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := msg.Accumulate(event); err != nil {
			return msg, fmt.Errorf("accumulate error: %w", err)
		}
		if event.Type == "content_block_delta" && event.Delta.Type == "text_delta" && event.Delta.Text != "" {
			cfg.Sink.OnStream(event.Delta.Text)
		}
	}
	if err := stream.Err(); err != nil {
		return msg, fmt.Errorf("stream error: %w", err)
	}
	return msg, nil
}

func runStopHooks(ctx context.Context, cfg LoopConfig) {
	if cfg.Hooks != nil {
		_ = cfg.Hooks.RunStop(ctx, cfg.SessionID)
	}
}

// processToolUse executes each tool_use block and returns the tool_result
// blocks in the same order.
func processToolUse(ctx context.Context, cfg LoopConfig, content []anthropic.ContentBlockUnion) []anthropic.ContentBlockParamUnion {
	var results []anthropic.ContentBlockParamUnion

	for _, block := range content {
		if block.Type != "tool_use" {
			continue
		}
		toolUse := block.AsToolUse()
		call := ToolCall{
			ID:    toolUse.ID,
			Name:  toolUse.Name,
			Input: json.RawMessage(toolUse.Input),
			At:    cfg.Now(),
		}
		cfg.Sink.OnToolUse(call)

		out := runTool(ctx, cfg, &call)
		out.At = cfg.Now()
		cfg.Sink.OnToolResult(call, out)

		results = append(results, anthropic.NewToolResultBlock(call.ID, out.Output, out.IsError))
	}
	return results
}

// errToolRefused marks outcomes where the tool never ran.
var errToolRefused = errors.New("tool refused")

// runTool applies hooks and permissions, then executes the tool. call.Input
// is replaced when a hook rewrites it.
func runTool(ctx context.Context, cfg LoopConfig, call *ToolCall) ToolOutcome {
	fail := func(text string) ToolOutcome {
		if cfg.Hooks != nil {
			post := *call
			post.At = cfg.Now()
			_ = cfg.Hooks.RunPostToolFailure(ctx, cfg.SessionID, post, fmt.Errorf("%w: %s", errToolRefused, text))
		}
		return ToolOutcome{Output: text, IsError: true}
	}

	if cfg.Hooks != nil {
		hookResult, err := cfg.Hooks.RunPreToolUse(ctx, cfg.SessionID, *call)
		if err != nil {
			return fail(fmt.Sprintf("hook error: %s", err.Error()))
		}
		if hookResult != nil {
			if hookResult.Block {
				reason := hookResult.Reason
				if reason == "" {
					reason = "blocked by hook"
				}
				return fail(fmt.Sprintf("tool blocked: %s", reason))
			}
			if hookResult.UpdatedInput != nil {
				call.Input = hookResult.UpdatedInput
			}
		}
	}

	if cfg.Permission != nil {
		decision, err := cfg.Permission.Check(ctx, call.Name, call.Input)
		if err != nil {
			return fail(fmt.Sprintf("permission error: %s", err.Error()))
		}
		switch decision {
		case PermissionDeny:
			return fail("tool execution denied by permission policy")
		case PermissionAsk:
			return fail("tool execution requires approval")
		}
	}

	text, isError, err := cfg.Tools.Execute(ctx, call.Name, call.Input)
	if cfg.Hooks != nil {
		post := *call
		post.At = cfg.Now()
		switch {
		case err != nil:
			_ = cfg.Hooks.RunPostToolFailure(ctx, cfg.SessionID, post, err)
		case isError:
			_ = cfg.Hooks.RunPostToolFailure(ctx, cfg.SessionID, post, errors.New(text))
		default:
			_ = cfg.Hooks.RunPostToolUse(ctx, cfg.SessionID, post, text)
		}
	}
	if err != nil {
		return ToolOutcome{Output: fmt.Sprintf("error: %s", err.Error()), IsError: true}
	}
	return ToolOutcome{Output: text, IsError: isError}
}
