package tools

import (
	"context"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"slices"

	agent "github.com/armatrix/agent-lessons"
)

// resolvePath resolves a file path against the working directory from context.
// Absolute paths, and any path when the context has no working directory,
// are returned unchanged.
func resolvePath(ctx context.Context, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if dir := agent.ContextWorkDir(ctx); dir != "" {
		return filepath.Join(dir, path)
	}
	return path
}

// Environment variables naming the run a subprocess belongs to.
const (
	EnvSessionID = "AGENT_SESSION_ID"
	EnvRunID     = "AGENT_RUN_ID"
)

// applyExecContext sets cmd.Dir and cmd.Env from the agent context values.
// cmd.Env stays nil, inheriting the parent environment, when there is
// nothing to add.
func applyExecContext(ctx context.Context, cmd *exec.Cmd) {
	if dir := agent.ContextWorkDir(ctx); dir != "" {
		cmd.Dir = dir
	}

	env := agent.ContextEnv(ctx)
	if sessionID, runID := agent.ContextRun(ctx); runID != "" {
		if env == nil {
			env = make(map[string]string, 2)
		}
		env[EnvSessionID] = sessionID
		env[EnvRunID] = runID
	}
	if len(env) == 0 {
		return
	}
	cmd.Env = os.Environ()
	for _, k := range slices.Sorted(maps.Keys(env)) {
		cmd.Env = append(cmd.Env, k+"="+env[k])
	}
}

// clip truncates s to max bytes, marking the cut.
func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n... [output truncated]"
}
