// Package permission decides whether the agent may run a tool.
package permission

import (
	"context"
	"encoding/json"
	"fmt"
)

// Decision represents the outcome of a permission check.
type Decision int

const (
	Allow Decision = iota // Tool execution is permitted
	Deny                  // Tool execution is blocked
	Ask                   // Needs approval; headless runs treat it as a denial
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	case Ask:
		return "ask"
	default:
		return fmt.Sprintf("Decision(%d)", int(d))
	}
}

// Mode controls the default permission behavior.
type Mode int

const (
	ModeDefault           Mode = iota // read=allow, everything else=ask
	ModeAcceptEdits                   // read+write=allow, bash=ask
	ModeBypassPermissions             // all=allow
	ModePlan                          // read=allow, write+bash=deny
)

var modeNames = map[Mode]string{
	ModeDefault:           "default",
	ModeAcceptEdits:       "acceptEdits",
	ModeBypassPermissions: "bypassPermissions",
	ModePlan:              "plan",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode converts a settings-file mode name into a Mode. The empty string
// is ModeDefault.
func ParseMode(s string) (Mode, error) {
	if s == "" {
		return ModeDefault, nil
	}
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return ModeDefault, fmt.Errorf("permission: unknown mode %q", s)
}

// Func is a user-provided permission callback.
type Func func(ctx context.Context, toolName string, input json.RawMessage) (Decision, error)

// ReadOnlyTools lists tools classified as read-only.
var ReadOnlyTools = map[string]bool{
	"Read": true,
	"Glob": true,
	"Grep": true,
}

// WriteTools lists tools classified as write operations.
var WriteTools = map[string]bool{
	"Write": true,
	"Edit":  true,
}

// Checker evaluates whether a tool can be used. Rules are consulted first,
// then the callback, then the mode.
type Checker struct {
	mode       Mode
	rules      []Rule
	canUseTool Func
}

// NewChecker creates a permission checker. rules and canUseTool may be nil.
func NewChecker(mode Mode, rules []Rule, canUseTool Func) *Checker {
	return &Checker{mode: mode, rules: rules, canUseTool: canUseTool}
}

// Check evaluates whether the named tool with the given input is allowed.
func (c *Checker) Check(ctx context.Context, toolName string, input json.RawMessage) (Decision, error) {
	if d, ok := MatchRules(c.rules, toolName); ok {
		return d, nil
	}
	if c.canUseTool != nil {
		return c.canUseTool(ctx, toolName, input)
	}

	switch c.mode {
	case ModeBypassPermissions:
		return Allow, nil
	case ModePlan:
		if ReadOnlyTools[toolName] {
			return Allow, nil
		}
		return Deny, nil
	case ModeAcceptEdits:
		if ReadOnlyTools[toolName] || WriteTools[toolName] {
			return Allow, nil
		}
		return Ask, nil
	default:
		if ReadOnlyTools[toolName] {
			return Allow, nil
		}
		return Ask, nil
	}
}

// Mode returns the current permission mode.
func (c *Checker) Mode() Mode {
	return c.mode
}
