package permission

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// Rule is a declarative permission rule. Pattern is a doublestar glob
// matched against the tool name, e.g. "mcp__context7__*", "{Read,Glob}".
type Rule struct {
	Pattern  string
	Decision Decision
}

// MatchRules evaluates rules against a tool name. Deny beats ask, ask beats
// allow. Returns (decision, matched); invalid patterns never match.
func MatchRules(rules []Rule, toolName string) (Decision, bool) {
	var hasAsk, hasAllow bool

	for _, r := range rules {
		ok, err := doublestar.Match(r.Pattern, toolName)
		if err != nil || !ok {
			continue
		}
		switch r.Decision {
		case Deny:
			return Deny, true
		case Ask:
			hasAsk = true
		case Allow:
			hasAllow = true
		}
	}

	if hasAsk {
		return Ask, true
	}
	if hasAllow {
		return Allow, true
	}
	return Allow, false
}

// ValidateRules reports the first rule whose pattern doublestar rejects.
func ValidateRules(rules []Rule) error {
	for i, r := range rules {
		if !doublestar.ValidatePattern(r.Pattern) {
			return &InvalidRuleError{Index: i, Pattern: r.Pattern}
		}
	}
	return nil
}

// InvalidRuleError describes a rule with a malformed pattern.
type InvalidRuleError struct {
	Index   int
	Pattern string
}

func (e *InvalidRuleError) Error() string {
	return fmt.Sprintf("permission: rule %d has invalid pattern %q", e.Index, e.Pattern)
}
