// Package hookrunner provides the internal runner that executes hook matchers.
package hookrunner

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	pubhook "github.com/armatrix/agent-lessons/hook"
)

const defaultTimeout = 30 * time.Second

// Call describes the tool call a hook fires for.
type Call struct {
	SessionID string
	ToolUseID string
	ToolName  string
	Input     json.RawMessage
	At        time.Time // zero = time.Now()
}

// Runner executes hooks matched by event and tool name.
type Runner struct {
	matchers []matcherEntry
}

type matcherEntry struct {
	event   pubhook.Event
	pattern *regexp.Regexp // nil = match all tools
	hooks   []pubhook.Func
	timeout time.Duration
}

// New creates a Runner from public Matcher definitions.
// Returns an error if any regex pattern is invalid.
func New(matchers []pubhook.Matcher) (*Runner, error) {
	entries := make([]matcherEntry, 0, len(matchers))
	for i, m := range matchers {
		entry := matcherEntry{
			event:   m.Event,
			hooks:   m.Hooks,
			timeout: m.Timeout,
		}
		if entry.timeout == 0 {
			entry.timeout = defaultTimeout
		}
		if m.Pattern != "" {
			re, err := regexp.Compile(m.Pattern)
			if err != nil {
				return nil, fmt.Errorf("matcher[%d]: invalid pattern %q: %w", i, m.Pattern, err)
			}
			entry.pattern = re
		}
		entries = append(entries, entry)
	}
	return &Runner{matchers: entries}, nil
}

// Len reports how many matchers are registered.
func (r *Runner) Len() int { return len(r.matchers) }

// RunPreToolUse runs all matching PreToolUse hooks. Returns the combined result.
// First block wins. UpdatedInput from the last non-nil update wins.
func (r *Runner) RunPreToolUse(ctx context.Context, c Call) (*pubhook.Result, error) {
	return r.run(ctx, c.ToolName, c.input(pubhook.PreToolUse))
}

// RunPostToolUse runs all matching PostToolUse hooks.
func (r *Runner) RunPostToolUse(ctx context.Context, c Call, output string) error {
	in := c.input(pubhook.PostToolUse)
	in.ToolOutput = output
	_, err := r.run(ctx, c.ToolName, in)
	return err
}

// RunPostToolFailure runs all matching PostToolUseFailure hooks.
func (r *Runner) RunPostToolFailure(ctx context.Context, c Call, toolErr error) error {
	in := c.input(pubhook.PostToolUseFailure)
	in.ToolError = toolErr
	_, err := r.run(ctx, c.ToolName, in)
	return err
}

// RunStop runs all matching Stop hooks.
func (r *Runner) RunStop(ctx context.Context, sessionID string) error {
	return r.runSession(ctx, pubhook.Stop, sessionID)
}

// RunSessionStart runs all matching SessionStart hooks.
func (r *Runner) RunSessionStart(ctx context.Context, sessionID string) error {
	return r.runSession(ctx, pubhook.SessionStart, sessionID)
}

// RunSessionEnd runs all matching SessionEnd hooks.
func (r *Runner) RunSessionEnd(ctx context.Context, sessionID string) error {
	return r.runSession(ctx, pubhook.SessionEnd, sessionID)
}

func (r *Runner) runSession(ctx context.Context, event pubhook.Event, sessionID string) error {
	_, err := r.run(ctx, "", &pubhook.Input{
		SessionID: sessionID,
		Event:     event,
		Timestamp: time.Now(),
	})
	return err
}

func (c Call) input(event pubhook.Event) *pubhook.Input {
	at := c.At
	if at.IsZero() {
		at = time.Now()
	}
	return &pubhook.Input{
		SessionID: c.SessionID,
		Event:     event,
		Timestamp: at,
		ToolUseID: c.ToolUseID,
		ToolName:  c.ToolName,
		ToolInput: c.Input,
	}
}

// run is the internal dispatcher.
func (r *Runner) run(ctx context.Context, toolName string, input *pubhook.Input) (*pubhook.Result, error) {
	var combined *pubhook.Result

	for _, entry := range r.matchers {
		if entry.event != input.Event {
			continue
		}
		if entry.pattern != nil && !entry.pattern.MatchString(toolName) {
			continue
		}

		tctx, cancel := context.WithTimeout(ctx, entry.timeout)
		res, err := runHooks(tctx, entry.hooks, input)
		cancel()

		if err != nil {
			return combined, err
		}
		if res == nil {
			continue
		}

		combined = merge(combined, res)
		if combined.Block {
			break
		}
	}

	return combined, nil
}

// runHooks executes a slice of hook functions in order.
// It stops early if a hook blocks or the context is cancelled.
func runHooks(ctx context.Context, hooks []pubhook.Func, input *pubhook.Input) (*pubhook.Result, error) {
	var combined *pubhook.Result

	for _, fn := range hooks {
		if err := ctx.Err(); err != nil {
			return combined, err
		}

		res, err := fn(ctx, input)
		if err != nil {
			return combined, err
		}
		if res == nil {
			continue
		}

		combined = merge(combined, res)
		if combined.Block {
			return combined, nil
		}
	}

	return combined, nil
}

func merge(combined, res *pubhook.Result) *pubhook.Result {
	if combined == nil {
		combined = &pubhook.Result{}
	}
	if res.Block && !combined.Block {
		combined.Block = true
		combined.Reason = res.Reason
	}
	if res.UpdatedInput != nil {
		combined.UpdatedInput = res.UpdatedInput
	}
	return combined
}
