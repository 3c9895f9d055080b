package telemetry

import (
	"context"

	"github.com/armatrix/agent-lessons/hook"
)

// HookMatchers returns matchers that feed every tool hook into c. They never
// block or modify a tool call.
//
// Hooks stop at the first matcher that blocks, so register these before any
// blocking matcher. Otherwise a refused call never reaches c as a start and
// its PostToolUseFailure is counted as an orphan instead of a failed call.
func HookMatchers(c *Collector) []hook.Matcher {
	observe := func(_ context.Context, in *hook.Input) (*hook.Result, error) {
		c.Ingest(in)
		return nil, nil
	}
	return []hook.Matcher{
		{Event: hook.PreToolUse, Hooks: []hook.Func{observe}},
		{Event: hook.PostToolUse, Hooks: []hook.Func{observe}},
		{Event: hook.PostToolUseFailure, Hooks: []hook.Func{observe}},
	}
}
