package agent

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armatrix/agent-lessons/hook"
	"github.com/armatrix/agent-lessons/internal/engine"
	"github.com/armatrix/agent-lessons/permission"
	"github.com/armatrix/agent-lessons/telemetry"
)

type fileInput struct {
	FilePath string `json:"file_path"`
}

type echoTool struct {
	name string
	fail bool
}

func (t *echoTool) Name() string        { return t.name }
func (t *echoTool) Description() string { return "echoes the path" }

func (t *echoTool) Execute(_ context.Context, in fileInput) (*ToolResult, error) {
	if t.fail {
		return ErrorResult("cannot open " + in.FilePath), nil
	}
	return TextResult("opened " + in.FilePath), nil
}

func newTestAgent(streamer engine.MessageStreamer, opts ...AgentOption) *Agent {
	a := NewAgent(append([]AgentOption{WithStreamer(streamer)}, opts...)...)
	RegisterTool[fileInput](a.Tools(), &echoTool{name: "Read"})
	RegisterTool[fileInput](a.Tools(), &echoTool{name: "Write", fail: true})
	return a
}

func TestRun_TextOnly(t *testing.T) {
	a := newTestAgent(newScriptedStreamer(textReply("hello")))
	stream := a.Run(context.Background(), "hi")
	events := drain(stream)

	require.NoError(t, stream.Err())
	require.Len(t, events, 4)
	assert.IsType(t, &SystemEvent{}, events[0])
	assert.Equal(t, "hello", events[1].(*StreamEvent).Delta)
	assert.IsType(t, &AssistantEvent{}, events[2])

	res := stream.Result()
	require.NotNil(t, res)
	assert.Equal(t, "success", res.Subtype)
	assert.Equal(t, int64(100), res.Usage.InputTokens)
	assert.True(t, res.TotalCost.IsPositive(), "cost is tracked without a budget limit")
	assert.Len(t, stream.Session().Messages, 2)
}

func TestRun_ToolEventsPairInOrder(t *testing.T) {
	a := newTestAgent(newScriptedStreamer(toolReply("Read", "Write", "Missing"), textReply("done")))
	stream := a.Run(context.Background(), "go")

	var trail []string
	for stream.Next() {
		switch e := stream.Current().(type) {
		case *ToolUseEvent:
			trail = append(trail, "use:"+e.ToolUseID)
			assert.False(t, e.StartedAt.IsZero())
		case *ToolResultEvent:
			trail = append(trail, "result:"+e.ToolUseID)
			assert.False(t, e.EndedAt.IsZero())
		}
	}
	require.NoError(t, stream.Err())
	assert.Equal(t, []string{
		"use:toolu_Read", "result:toolu_Read",
		"use:toolu_Write", "result:toolu_Write",
		"use:toolu_Missing", "result:toolu_Missing",
	}, trail)

	meta := stream.Session().Metadata
	assert.Equal(t, 3, meta.ToolCalls)
	assert.Equal(t, 2, meta.NumTurns)
	assert.Equal(t, anthropic.Model(DefaultModel), meta.Model)
}

func TestRun_FeedsTelemetry(t *testing.T) {
	c := telemetry.New()
	a := newTestAgent(newScriptedStreamer(toolReply("Read", "Write", "Missing"), textReply("done")),
		WithTelemetry(c))
	assert.Same(t, c, a.Telemetry())

	stream := a.Run(context.Background(), "go")
	drain(stream)
	require.NoError(t, stream.Err())

	snap := c.Snapshot()
	assert.Equal(t, 3, snap.TotalCalls)
	assert.Equal(t, 1, snap.SuccessfulCalls)
	assert.Equal(t, 2, snap.FailedCalls)
	assert.Equal(t, 1, snap.PerKind["Read"].Successes)
	assert.Equal(t, 1, snap.PerKind["Missing"].Failures)
	assert.Zero(t, snap.OrphanedCompletions)
	assert.Zero(t, c.PendingCount())

	var ids []string
	for e := range c.ExportTimeline() {
		ids = append(ids, e.Call.CallID)
	}
	assert.Equal(t, []string{"toolu_Read", "toolu_Write", "toolu_Missing"}, ids)
}

func TestRun_TelemetryObservesDeniedCalls(t *testing.T) {
	c := telemetry.New()
	a := newTestAgent(newScriptedStreamer(toolReply("Read", "Write"), textReply("done")),
		WithTelemetry(c),
		WithPermissionRules(permission.Rule{Pattern: "Write", Decision: permission.Deny}))

	stream := a.Run(context.Background(), "go")
	var denied *ToolResultEvent
	for stream.Next() {
		if e, ok := stream.Current().(*ToolResultEvent); ok && e.Name == "Write" {
			denied = e
		}
	}
	require.NotNil(t, denied)
	assert.True(t, denied.IsError)
	assert.Contains(t, denied.Output, "denied")
	assert.Equal(t, 1, c.Snapshot().PerKind["Write"].Failures)
}

func TestRun_HooksSeeToolUseIDs(t *testing.T) {
	var mu sync.Mutex
	seen := map[hook.Event][]string{}
	record := func(_ context.Context, in *hook.Input) (*hook.Result, error) {
		mu.Lock()
		defer mu.Unlock()
		seen[in.Event] = append(seen[in.Event], in.ToolUseID)
		return nil, nil
	}
	a := newTestAgent(newScriptedStreamer(toolReply("Read", "Write"), textReply("done")),
		WithHooks(
			hook.Matcher{Event: hook.PreToolUse, Hooks: []hook.Func{record}},
			hook.Matcher{Event: hook.PostToolUse, Hooks: []hook.Func{record}},
			hook.Matcher{Event: hook.PostToolUseFailure, Hooks: []hook.Func{record}},
		))

	drain(a.Run(context.Background(), "go"))

	assert.Equal(t, []string{"toolu_Read", "toolu_Write"}, seen[hook.PreToolUse])
	assert.Equal(t, []string{"toolu_Read"}, seen[hook.PostToolUse])
	assert.Equal(t, []string{"toolu_Write"}, seen[hook.PostToolUseFailure])
}

func TestRun_CollectorHookMatchersMatchSink(t *testing.T) {
	viaHooks := telemetry.New()
	viaSink := telemetry.New()
	a := newTestAgent(newScriptedStreamer(toolReply("Read", "Write"), textReply("done")),
		WithTelemetry(viaSink),
		WithHooks(telemetry.HookMatchers(viaHooks)...))

	drain(a.Run(context.Background(), "go"))

	assert.Equal(t, viaSink.Snapshot().TotalCalls, viaHooks.Snapshot().TotalCalls)
	assert.Equal(t, viaSink.Snapshot().FailedCalls, viaHooks.Snapshot().FailedCalls)
}

func TestRun_HookTelemetryCountsBlockedCallAsFailure(t *testing.T) {
	c := telemetry.New()
	guard := hook.Matcher{
		Event:   hook.PreToolUse,
		Pattern: "^Read$",
		Hooks: []hook.Func{func(context.Context, *hook.Input) (*hook.Result, error) {
			return &hook.Result{Block: true, Reason: "not today"}, nil
		}},
	}
	a := newTestAgent(newScriptedStreamer(toolReply("Read"), textReply("ok")),
		WithHooks(telemetry.HookMatchers(c)...),
		WithHooks(guard),
	)

	stream := a.Run(context.Background(), "read")
	drain(stream)
	require.NoError(t, stream.Err())

	snap := c.Snapshot()
	assert.Equal(t, 1, snap.TotalCalls)
	assert.Equal(t, 1, snap.FailedCalls)
	assert.Equal(t, 0, snap.OrphanedCompletions)
	assert.Equal(t, 1, snap.PerKind["Read"].Failures)
	assert.Equal(t, 0, c.PendingCount())
}

func TestRun_MaxTurnsReportsError(t *testing.T) {
	a := newTestAgent(newScriptedStreamer(toolReply("Read"), textReply("never")), WithMaxTurns(1))
	stream := a.Run(context.Background(), "go")
	drain(stream)

	assert.ErrorIs(t, stream.Err(), ErrMaxTurns)
	assert.Equal(t, "error_max_turns", stream.Result().Subtype)
}

func TestRun_BudgetExhausted(t *testing.T) {
	a := newTestAgent(newScriptedStreamer(toolReply("Read"), textReply("never")),
		WithBudget(decimal.RequireFromString("0.000001")))
	stream := a.Run(context.Background(), "go")
	drain(stream)

	assert.ErrorIs(t, stream.Err(), ErrBudgetExhausted)
	assert.True(t, stream.Result().TotalCost.GreaterThan(decimal.RequireFromString("0.000001")))
}

func TestRun_StreamFailure(t *testing.T) {
	a := newTestAgent(newScriptedStreamer())
	stream := a.Run(context.Background(), "go")
	drain(stream)

	require.ErrorIs(t, stream.Err(), ErrRunFailed)
	assert.Contains(t, stream.Err().Error(), "no more scripted responses")
}

func TestRun_ToolsSeeRunIDs(t *testing.T) {
	a := newTestAgent(newScriptedStreamer(toolReply("Whoami"), textReply("done")))

	var sessionID, runID string
	a.Tools().RegisterRaw("Whoami", "reports the run", anthropic.ToolInputSchemaParam{},
		func(ctx context.Context, _ json.RawMessage) (*ToolResult, error) {
			sessionID, runID = ContextRun(ctx)
			return TextResult("ok"), nil
		})

	stream := a.Run(context.Background(), "who")
	drain(stream)
	require.NoError(t, stream.Err())

	res := stream.Result()
	require.NotNil(t, res)
	assert.Equal(t, stream.Session().ID, sessionID)
	assert.Equal(t, res.RunID, runID)
	assert.Contains(t, runID, PrefixRun+"_")
}

func TestRunWithSession_ExtendsHistory(t *testing.T) {
	a := newTestAgent(newScriptedStreamer(textReply("one"), textReply("two")))
	session := NewSession()

	drain(a.RunWithSession(context.Background(), session, "first"))
	drain(a.RunWithSession(context.Background(), session, "second"))

	assert.Len(t, session.Messages, 4)
	assert.Equal(t, 2, session.Metadata.NumTurns)
	assert.Equal(t, int64(200), session.Metadata.TotalTokens.InputTokens)
}

func TestNewAgent_InvalidHookPatternFailsRuns(t *testing.T) {
	a := newTestAgent(newScriptedStreamer(textReply("x")),
		WithHooks(hook.Matcher{Event: hook.PreToolUse, Pattern: "(["}))

	stream := a.Run(context.Background(), "go")
	assert.Empty(t, drain(stream))
	require.Error(t, stream.Err())
	assert.Contains(t, stream.Err().Error(), "hooks")
}

func TestNewAgent_InvalidRuleFailsRuns(t *testing.T) {
	a := newTestAgent(newScriptedStreamer(textReply("x")),
		WithPermissionRules(permission.Rule{Pattern: "[", Decision: permission.Deny}))

	stream := a.Run(context.Background(), "go")
	drain(stream)
	var ruleErr *permission.InvalidRuleError
	assert.ErrorAs(t, stream.Err(), &ruleErr)
}

func TestNewAgent_SettingsOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: claude-haiku-4-5\nmaxTurns: 7\nmaxBudgetUSD: 2.5\npermissionMode: plan\n"), 0o644))

	a := NewAgent(WithStreamer(newScriptedStreamer()), WithSettingSources(path), WithMaxTurns(3))

	assert.Equal(t, anthropic.Model("claude-haiku-4-5"), a.Model())
	assert.Equal(t, 3, a.opts.maxTurns, "explicit option wins")
	assert.True(t, decimal.RequireFromString("2.5").Equal(a.opts.maxBudget))
	assert.Equal(t, permission.ModePlan, a.opts.permissionMode)
	assert.NoError(t, a.initErr)
}

func TestNewAgent_BadSettingsFailRuns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"permissionMode":"yolo"}`), 0o644))

	a := NewAgent(WithStreamer(newScriptedStreamer()), WithSettingSources(path))
	stream := a.Run(context.Background(), "go")
	drain(stream)
	require.Error(t, stream.Err())
	assert.Contains(t, stream.Err().Error(), "yolo")
}

// --- adapters ---

func TestExtractTextFromBlocks(t *testing.T) {
	assert.Equal(t, "", extractTextFromBlocks(nil))
	assert.Equal(t, "first", extractTextFromBlocks([]anthropic.ContentBlockParamUnion{
		anthropic.NewTextBlock("first"),
		anthropic.NewTextBlock("second"),
	}))
}

func TestToolExecutorAdapter_NotFound(t *testing.T) {
	adapter := &toolExecutorAdapter{registry: NewToolRegistry()}
	_, _, err := adapter.Execute(context.Background(), "nope", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestPermissionAdapter_MapsDecisions(t *testing.T) {
	fnErr := errors.New("policy offline")
	tests := []struct {
		name string
		fn   permission.Func
		want int
		err  error
	}{
		{"allow", func(context.Context, string, json.RawMessage) (permission.Decision, error) { return permission.Allow, nil }, engine.PermissionAllow, nil},
		{"deny", func(context.Context, string, json.RawMessage) (permission.Decision, error) { return permission.Deny, nil }, engine.PermissionDeny, nil},
		{"ask", func(context.Context, string, json.RawMessage) (permission.Decision, error) { return permission.Ask, nil }, engine.PermissionAsk, nil},
		{"error", func(context.Context, string, json.RawMessage) (permission.Decision, error) { return permission.Allow, fnErr }, engine.PermissionAllow, fnErr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &permissionAdapter{checker: permission.NewChecker(permission.ModeDefault, nil, tt.fn)}
			got, err := p.Check(context.Background(), "Bash", nil)
			assert.Equal(t, tt.want, got)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
