package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/shopspring/decimal"

	"github.com/armatrix/agent-lessons/internal/budget"
	"github.com/armatrix/agent-lessons/internal/config"
	"github.com/armatrix/agent-lessons/internal/engine"
	"github.com/armatrix/agent-lessons/internal/hookrunner"
	"github.com/armatrix/agent-lessons/permission"
	"github.com/armatrix/agent-lessons/telemetry"
)

// Agent is a stateless execution engine that holds configuration, tools, and hooks.
// The same Agent can be safely shared across multiple goroutines.
type Agent struct {
	streamer engine.MessageStreamer
	tools    *ToolRegistry
	hooks    *hookrunner.Runner
	opts     agentOptions

	// initErr fails every run when the configuration could not be applied.
	initErr error
}

// NewAgent creates a new Agent with the given options.
// The Agent does not hold any session or conversation history.
func NewAgent(opts ...AgentOption) *Agent {
	// Capture user-set values before applying defaults
	var userSet agentOptions
	for _, fn := range opts {
		fn(&userSet)
	}
	resolved := userSet
	resolved.applyDefaults()

	a := &Agent{tools: NewToolRegistry()}

	// User-explicit options take precedence over file-based settings
	if len(resolved.settingSources) > 0 {
		settings, err := config.LoadSettings(resolved.settingSources...)
		if err == nil {
			err = applySettings(&resolved, settings, &userSet)
		}
		if err != nil {
			a.initErr = fmt.Errorf("agent: settings: %w", err)
		}
	}

	if err := permission.ValidateRules(resolved.permissionRules); err != nil && a.initErr == nil {
		a.initErr = err
	}

	if len(resolved.hookMatchers) > 0 {
		runner, err := hookrunner.New(resolved.hookMatchers)
		if err != nil && a.initErr == nil {
			a.initErr = fmt.Errorf("agent: hooks: %w", err)
		}
		a.hooks = runner
	}

	a.streamer = resolved.streamer
	if a.streamer == nil {
		client := anthropic.NewClient()
		a.streamer = engine.NewMessageStreamer(&client.Messages)
	}
	a.opts = resolved
	return a
}

// applySettings merges loaded settings into resolved options.
// Options set explicitly via WithXxx take precedence over settings files.
// We check against zero values to detect whether the user set an explicit option.
func applySettings(o *agentOptions, s *config.Settings, userSet *agentOptions) error {
	if userSet.model == "" && s.Model != "" {
		o.model = anthropic.Model(s.Model)
	}
	if userSet.systemPrompt == "" && s.SystemPrompt != "" {
		o.systemPrompt = s.SystemPrompt
	}
	if userSet.maxTurns == 0 && s.MaxTurns > 0 {
		o.maxTurns = s.MaxTurns
	}
	if userSet.maxBudget.IsZero() && s.MaxBudgetUSD > 0 {
		o.maxBudget = decimal.NewFromFloat(s.MaxBudgetUSD)
	}
	if userSet.permissionMode == permission.ModeDefault && s.PermissionMode != "" {
		mode, err := permission.ParseMode(s.PermissionMode)
		if err != nil {
			return err
		}
		o.permissionMode = mode
	}
	return nil
}

// Tools returns the agent's tool registry for registering custom tools.
func (a *Agent) Tools() *ToolRegistry {
	return a.tools
}

// Model returns the configured model.
func (a *Agent) Model() anthropic.Model {
	return a.opts.model
}

// Telemetry returns the collector set with WithTelemetry, or nil.
func (a *Agent) Telemetry() *telemetry.Collector {
	return a.opts.collector
}

// Run starts a single-shot agent execution with a new session.
// Returns an AgentStream for iterating over events.
func (a *Agent) Run(ctx context.Context, prompt string) *AgentStream {
	return a.RunWithSession(ctx, NewSession(), prompt)
}

// RunWithSession starts an agent execution using an existing session.
// The session's message history is preserved and extended.
func (a *Agent) RunWithSession(ctx context.Context, session *Session, prompt string) *AgentStream {
	if a.initErr != nil {
		return errorStream(a.initErr, session)
	}

	session.Messages = append(session.Messages,
		anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)))

	runID := GenerateID(PrefixRun)
	ctx = withRun(ctx, session.ID, runID)

	eventCh := make(chan Event, a.opts.streamBufferSize)
	stream := newStream(eventCh, session)
	sink := &channelSink{ch: eventCh, collector: a.opts.collector, runID: runID}

	// Always track spend so results report a cost; the limit may be zero.
	tracker := budget.NewTracker(a.opts.maxBudget, budget.DefaultPricing)

	cfg := engine.LoopConfig{
		Streamer:  a.streamer,
		Tools:     &toolExecutorAdapter{registry: a.tools},
		Model:     a.opts.model,
		MaxTokens: a.opts.maxOutputTokens,
		MaxTurns:  a.opts.maxTurns,
		Messages:  &session.Messages,
		SessionID: session.ID,
		Sink:      sink,
		Budget:    &budgetAdapter{tracker: tracker},
	}

	if a.opts.systemPrompt != "" {
		cfg.SystemPrompt = []anthropic.TextBlockParam{
			{Text: a.opts.systemPrompt},
		}
	}
	if a.hooks != nil {
		cfg.Hooks = &hookRunnerAdapter{runner: a.hooks}
	}
	if a.opts.permissionMode != permission.ModeDefault || a.opts.permissionFunc != nil || len(a.opts.permissionRules) > 0 {
		checker := permission.NewChecker(a.opts.permissionMode, a.opts.permissionRules, a.opts.permissionFunc)
		cfg.Permission = &permissionAdapter{checker: checker}
	}

	go func() {
		defer close(eventCh)
		engine.RunLoop(ctx, cfg)
		if sink.result != nil {
			session.record(a.opts.model, sink.result, sink.toolCalls)
		}
	}()

	return stream
}

// toolExecutorAdapter wraps ToolRegistry to implement engine.ToolExecutor.
type toolExecutorAdapter struct {
	registry *ToolRegistry
}

func (t *toolExecutorAdapter) Execute(ctx context.Context, name string, input json.RawMessage) (string, bool, error) {
	result, err := t.registry.Execute(ctx, name, input)
	if err != nil {
		return "", false, err
	}
	return extractTextFromBlocks(result.Content), result.IsError, nil
}

func (t *toolExecutorAdapter) ListForAPI() []anthropic.ToolUnionParam {
	return t.registry.ListForAPI()
}

// extractTextFromBlocks extracts text from content block param unions.
func extractTextFromBlocks(blocks []anthropic.ContentBlockParamUnion) string {
	for _, b := range blocks {
		if b.OfText != nil {
			return b.OfText.Text
		}
	}
	return ""
}

// channelSink implements engine.EventSink by sending events to a channel.
// Tool events are ingested into the collector before they are sent.
type channelSink struct {
	ch        chan Event
	collector *telemetry.Collector
	runID     string

	// Written by the loop goroutine only.
	result    *ResultEvent
	toolCalls int
}

func (s *channelSink) OnSystem(sessionID string, model anthropic.Model) {
	s.ch <- &SystemEvent{SessionID: sessionID, Model: model}
}

func (s *channelSink) OnStream(delta string) {
	s.ch <- &StreamEvent{Delta: delta}
}

func (s *channelSink) OnAssistant(msg anthropic.Message) {
	s.ch <- &AssistantEvent{Message: msg}
}

func (s *channelSink) OnToolUse(call engine.ToolCall) {
	s.toolCalls++
	ev := &ToolUseEvent{
		ToolUseID: call.ID,
		Name:      call.Name,
		Input:     call.Input,
		StartedAt: call.At,
	}
	s.observe(ev)
	s.ch <- ev
}

func (s *channelSink) OnToolResult(call engine.ToolCall, out engine.ToolOutcome) {
	ev := &ToolResultEvent{
		ToolUseID: call.ID,
		Name:      call.Name,
		Output:    out.Output,
		IsError:   out.IsError,
		EndedAt:   out.At,
	}
	s.observe(ev)
	s.ch <- ev
}

func (s *channelSink) observe(ev Event) {
	if s.collector != nil {
		s.collector.Ingest(ev)
	}
}

func (s *channelSink) OnResult(info engine.ResultInfo) {
	s.result = &ResultEvent{
		Subtype:   info.Subtype,
		SessionID: info.SessionID,
		RunID:     s.runID,
		IsError:   info.IsError,
		NumTurns:  info.NumTurns,
		TotalCost: info.TotalCost,
		Usage: Usage{
			InputTokens:              info.InputTokens,
			OutputTokens:             info.OutputTokens,
			CacheReadInputTokens:     info.CacheReadInputTokens,
			CacheCreationInputTokens: info.CacheCreationInputTokens,
		},
		DurationMs: info.DurationMs,
		Errors:     info.Errors,
	}
	s.ch <- s.result
}

// budgetAdapter wraps budget.Tracker to implement engine.BudgetChecker.
type budgetAdapter struct {
	tracker *budget.Tracker
}

func (b *budgetAdapter) RecordUsage(model anthropic.Model, usage engine.BudgetUsage) {
	b.tracker.Record(model, budget.Usage{
		InputTokens:              usage.InputTokens,
		OutputTokens:             usage.OutputTokens,
		CacheReadInputTokens:     usage.CacheRead,
		CacheCreationInputTokens: usage.CacheCreation,
	})
}

func (b *budgetAdapter) Exhausted() bool {
	return b.tracker.Exhausted()
}

func (b *budgetAdapter) TotalCost() decimal.Decimal {
	return b.tracker.Cost()
}

// hookRunnerAdapter wraps hookrunner.Runner to implement engine.HookRunner.
type hookRunnerAdapter struct {
	runner *hookrunner.Runner
}

func toHookCall(sessionID string, call engine.ToolCall) hookrunner.Call {
	return hookrunner.Call{
		SessionID: sessionID,
		ToolUseID: call.ID,
		ToolName:  call.Name,
		Input:     call.Input,
		At:        call.At,
	}
}

func (h *hookRunnerAdapter) RunPreToolUse(ctx context.Context, sessionID string, call engine.ToolCall) (*engine.HookPreToolResult, error) {
	result, err := h.runner.RunPreToolUse(ctx, toHookCall(sessionID, call))
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return &engine.HookPreToolResult{
		Block:        result.Block,
		Reason:       result.Reason,
		UpdatedInput: result.UpdatedInput,
	}, nil
}

func (h *hookRunnerAdapter) RunPostToolUse(ctx context.Context, sessionID string, call engine.ToolCall, output string) error {
	return h.runner.RunPostToolUse(ctx, toHookCall(sessionID, call), output)
}

func (h *hookRunnerAdapter) RunPostToolFailure(ctx context.Context, sessionID string, call engine.ToolCall, toolErr error) error {
	return h.runner.RunPostToolFailure(ctx, toHookCall(sessionID, call), toolErr)
}

func (h *hookRunnerAdapter) RunStop(ctx context.Context, sessionID string) error {
	return h.runner.RunStop(ctx, sessionID)
}

func (h *hookRunnerAdapter) RunSessionStart(ctx context.Context, sessionID string) error {
	return h.runner.RunSessionStart(ctx, sessionID)
}

func (h *hookRunnerAdapter) RunSessionEnd(ctx context.Context, sessionID string) error {
	return h.runner.RunSessionEnd(ctx, sessionID)
}

// permissionAdapter wraps permission.Checker to implement engine.PermissionChecker.
type permissionAdapter struct {
	checker *permission.Checker
}

func (p *permissionAdapter) Check(ctx context.Context, toolName string, input json.RawMessage) (int, error) {
	decision, err := p.checker.Check(ctx, toolName, input)
	if err != nil {
		return engine.PermissionAllow, err
	}
	switch decision {
	case permission.Deny:
		return engine.PermissionDeny, nil
	case permission.Ask:
		return engine.PermissionAsk, nil
	default:
		return engine.PermissionAllow, nil
	}
}
