package tools

import (
	agent "github.com/armatrix/agent-lessons"
)

// RegisterAll registers Read, Glob and Bash into the provided registry.
func RegisterAll(registry *agent.ToolRegistry) {
	agent.RegisterTool(registry, &ReadTool{})
	agent.RegisterTool(registry, &GlobTool{})
	agent.RegisterTool(registry, &BashTool{})
}
