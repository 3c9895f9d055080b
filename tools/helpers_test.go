package tools

import (
	"testing"

	"github.com/stretchr/testify/require"

	agent "github.com/armatrix/agent-lessons"
)

// extractText returns the text of a ToolResult's first content block.
func extractText(t *testing.T, r *agent.ToolResult) string {
	t.Helper()
	require.NotNil(t, r)
	require.NotEmpty(t, r.Content)
	text := r.Content[0].GetText()
	require.NotNil(t, text)
	return *text
}

func intPtr(n int) *int { return &n }
