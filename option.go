package agent

import (
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/shopspring/decimal"

	"github.com/armatrix/agent-lessons/hook"
	"github.com/armatrix/agent-lessons/internal/engine"
	"github.com/armatrix/agent-lessons/permission"
	"github.com/armatrix/agent-lessons/telemetry"
)

// AgentOption configures an Agent via the functional options pattern.
type AgentOption func(*agentOptions)

// agentOptions holds all configurable fields set via AgentOption functions.
type agentOptions struct {
	model            anthropic.Model
	maxOutputTokens  int
	maxTurns         int
	maxBudget        decimal.Decimal
	systemPrompt     string
	streamBufferSize int

	hookMatchers    []hook.Matcher
	permissionMode  permission.Mode
	permissionFunc  permission.Func
	permissionRules []permission.Rule

	settingSources []string
	collector      *telemetry.Collector
	streamer       engine.MessageStreamer
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (o *agentOptions) applyDefaults() {
	if o.model == "" {
		o.model = DefaultModel
	}
	if o.maxOutputTokens == 0 {
		o.maxOutputTokens = DefaultMaxOutputTokens
	}
	if o.streamBufferSize == 0 {
		o.streamBufferSize = DefaultStreamBufferSize
	}
}

// --- Model & Limits ---

// WithModel sets the Claude model to use.
// Use constants from anthropic-sdk-go, e.g. anthropic.ModelClaudeSonnet4_5.
func WithModel(model anthropic.Model) AgentOption {
	return func(o *agentOptions) { o.model = model }
}

// WithMaxOutputTokens sets the maximum output tokens per response.
func WithMaxOutputTokens(tokens int) AgentOption {
	return func(o *agentOptions) { o.maxOutputTokens = tokens }
}

// WithMaxTurns sets the maximum number of agent loop turns (0 = unlimited).
func WithMaxTurns(n int) AgentOption {
	return func(o *agentOptions) { o.maxTurns = n }
}

// WithBudget sets the maximum budget in USD for a run. Zero means unlimited.
func WithBudget(maxUSD decimal.Decimal) AgentOption {
	return func(o *agentOptions) { o.maxBudget = maxUSD }
}

// WithSystemPrompt sets the system prompt sent with every request.
func WithSystemPrompt(prompt string) AgentOption {
	return func(o *agentOptions) { o.systemPrompt = prompt }
}

// WithStreamBufferSize sets the event channel buffer size.
func WithStreamBufferSize(n int) AgentOption {
	return func(o *agentOptions) { o.streamBufferSize = n }
}

// --- Hooks & Permissions ---

// WithHooks appends hook matchers. Invalid patterns make every run fail.
func WithHooks(matchers ...hook.Matcher) AgentOption {
	return func(o *agentOptions) { o.hookMatchers = append(o.hookMatchers, matchers...) }
}

// WithPermissionMode sets the default permission behavior.
func WithPermissionMode(mode permission.Mode) AgentOption {
	return func(o *agentOptions) { o.permissionMode = mode }
}

// WithPermissionFunc sets a callback consulted when no rule matches.
func WithPermissionFunc(fn permission.Func) AgentOption {
	return func(o *agentOptions) { o.permissionFunc = fn }
}

// WithPermissionRules appends declarative permission rules.
func WithPermissionRules(rules ...permission.Rule) AgentOption {
	return func(o *agentOptions) { o.permissionRules = append(o.permissionRules, rules...) }
}

// --- Sources & Sinks ---

// WithSettingSources loads settings files in order. Later files override
// earlier ones; explicit options override all of them.
func WithSettingSources(paths ...string) AgentOption {
	return func(o *agentOptions) { o.settingSources = paths }
}

// WithTelemetry ingests every tool call of every run into c.
func WithTelemetry(c *telemetry.Collector) AgentOption {
	return func(o *agentOptions) { o.collector = c }
}

// WithStreamer replaces the Anthropic Messages transport, e.g. with a
// recorded or mock stream.
func WithStreamer(s engine.MessageStreamer) AgentOption {
	return func(o *agentOptions) { o.streamer = s }
}
