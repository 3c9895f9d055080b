package permission_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/armatrix/agent-lessons/permission"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func check(t *testing.T, c *permission.Checker, tool string) permission.Decision {
	t.Helper()
	d, err := c.Check(context.Background(), tool, nil)
	require.NoError(t, err)
	return d
}

func TestModeDefaults(t *testing.T) {
	tests := []struct {
		mode permission.Mode
		tool string
		want permission.Decision
	}{
		{permission.ModeDefault, "Read", permission.Allow},
		{permission.ModeDefault, "Glob", permission.Allow},
		{permission.ModeDefault, "Write", permission.Ask},
		{permission.ModeDefault, "Bash", permission.Ask},
		{permission.ModeAcceptEdits, "Edit", permission.Allow},
		{permission.ModeAcceptEdits, "Bash", permission.Ask},
		{permission.ModeBypassPermissions, "Bash", permission.Allow},
		{permission.ModePlan, "Read", permission.Allow},
		{permission.ModePlan, "Write", permission.Deny},
		{permission.ModePlan, "Bash", permission.Deny},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String()+"/"+tt.tool, func(t *testing.T) {
			c := permission.NewChecker(tt.mode, nil, nil)
			assert.Equal(t, tt.want, check(t, c, tt.tool))
		})
	}
}

func TestCallbackOverridesMode(t *testing.T) {
	var seen json.RawMessage
	fn := func(_ context.Context, tool string, input json.RawMessage) (permission.Decision, error) {
		seen = input
		if tool == "Read" {
			return permission.Deny, nil
		}
		return permission.Allow, nil
	}
	c := permission.NewChecker(permission.ModePlan, nil, fn)

	d, err := c.Check(context.Background(), "Read", json.RawMessage(`{"file_path":"/etc/passwd"}`))
	require.NoError(t, err)
	assert.Equal(t, permission.Deny, d)
	assert.JSONEq(t, `{"file_path":"/etc/passwd"}`, string(seen))
	assert.Equal(t, permission.Allow, check(t, c, "Bash"))
}

func TestCallbackError(t *testing.T) {
	boom := errors.New("policy service down")
	c := permission.NewChecker(permission.ModeDefault, nil,
		func(context.Context, string, json.RawMessage) (permission.Decision, error) {
			return permission.Deny, boom
		})

	_, err := c.Check(context.Background(), "Bash", nil)
	assert.ErrorIs(t, err, boom)
}

func TestMatchRules_Precedence(t *testing.T) {
	rules := []permission.Rule{
		{Pattern: "Bash", Decision: permission.Allow},
		{Pattern: "Bash", Decision: permission.Ask},
		{Pattern: "Bash", Decision: permission.Deny},
		{Pattern: "Edit", Decision: permission.Allow},
		{Pattern: "Edit", Decision: permission.Ask},
	}

	d, ok := permission.MatchRules(rules, "Bash")
	assert.True(t, ok)
	assert.Equal(t, permission.Deny, d, "deny beats allow and ask")

	d, ok = permission.MatchRules(rules, "Edit")
	assert.True(t, ok)
	assert.Equal(t, permission.Ask, d, "ask beats allow")
}

func TestMatchRules_Globs(t *testing.T) {
	rules := []permission.Rule{
		{Pattern: "mcp__*", Decision: permission.Allow},
		{Pattern: "{Read,Glob}", Decision: permission.Allow},
		{Pattern: "Rea?y", Decision: permission.Ask},
		{Pattern: "Web[FS]*", Decision: permission.Deny},
	}

	tests := []struct {
		tool    string
		want    permission.Decision
		matched bool
	}{
		{"mcp__context7__query", permission.Allow, true},
		{"Read", permission.Allow, true},
		{"Glob", permission.Allow, true},
		{"Ready", permission.Ask, true},
		{"WebFetch", permission.Deny, true},
		{"WebSearch", permission.Deny, true},
		{"Bash", permission.Allow, false},
	}
	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			d, ok := permission.MatchRules(rules, tt.tool)
			assert.Equal(t, tt.matched, ok)
			if ok {
				assert.Equal(t, tt.want, d)
			}
		})
	}
}

func TestMatchRules_EmptyAndInvalid(t *testing.T) {
	_, ok := permission.MatchRules(nil, "Bash")
	assert.False(t, ok)

	_, ok = permission.MatchRules([]permission.Rule{{Pattern: "[invalid", Decision: permission.Deny}}, "anything")
	assert.False(t, ok, "invalid pattern never matches")
}

func TestValidateRules(t *testing.T) {
	require.NoError(t, permission.ValidateRules([]permission.Rule{{Pattern: "mcp__*"}}))

	err := permission.ValidateRules([]permission.Rule{{Pattern: "Bash"}, {Pattern: "[oops"}})
	var invalid *permission.InvalidRuleError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, 1, invalid.Index)
	assert.Contains(t, err.Error(), "[oops")
}

func TestRulesOverrideModeAndCallback(t *testing.T) {
	rules := []permission.Rule{
		{Pattern: "Edit", Decision: permission.Allow},
		{Pattern: "Bash", Decision: permission.Deny},
	}
	alwaysAsk := func(context.Context, string, json.RawMessage) (permission.Decision, error) {
		return permission.Ask, nil
	}

	plan := permission.NewChecker(permission.ModePlan, rules, nil)
	assert.Equal(t, permission.Allow, check(t, plan, "Edit"), "rule overrides plan mode")

	bypass := permission.NewChecker(permission.ModeBypassPermissions, rules, nil)
	assert.Equal(t, permission.Deny, check(t, bypass, "Bash"), "rule overrides bypass mode")

	withFn := permission.NewChecker(permission.ModeDefault, rules, alwaysAsk)
	assert.Equal(t, permission.Deny, check(t, withFn, "Bash"))
	assert.Equal(t, permission.Ask, check(t, withFn, "Read"), "unmatched tool goes to the callback")
}

func TestParseMode(t *testing.T) {
	for _, m := range []permission.Mode{
		permission.ModeDefault, permission.ModeAcceptEdits,
		permission.ModeBypassPermissions, permission.ModePlan,
	} {
		got, err := permission.ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}

	got, err := permission.ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, permission.ModeDefault, got)

	_, err = permission.ParseMode("yolo")
	assert.Error(t, err)
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "allow", permission.Allow.String())
	assert.Equal(t, "deny", permission.Deny.String())
	assert.Equal(t, "ask", permission.Ask.String())
}
