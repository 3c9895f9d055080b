package agent

import (
	"context"
	"maps"
)

type execKey struct{}

// execContext is what a run exposes to its tools through the context they
// are called with. Values are copied on every With call.
type execContext struct {
	workDir   string
	env       map[string]string
	sessionID string
	runID     string
}

func execFrom(ctx context.Context) execContext {
	ec, _ := ctx.Value(execKey{}).(execContext)
	return ec
}

func withExec(ctx context.Context, fn func(*execContext)) context.Context {
	ec := execFrom(ctx)
	fn(&ec)
	return context.WithValue(ctx, execKey{}, ec)
}

// WithContextWorkDir sets the directory tools resolve relative paths against.
func WithContextWorkDir(ctx context.Context, dir string) context.Context {
	return withExec(ctx, func(ec *execContext) { ec.workDir = dir })
}

// ContextWorkDir returns the working directory from ctx, or "".
func ContextWorkDir(ctx context.Context) string {
	return execFrom(ctx).workDir
}

// WithContextEnv adds environment variables for tool subprocesses. Variables
// already set on ctx are kept unless env overrides them.
func WithContextEnv(ctx context.Context, env map[string]string) context.Context {
	return withExec(ctx, func(ec *execContext) {
		merged := maps.Clone(ec.env)
		if merged == nil {
			merged = make(map[string]string, len(env))
		}
		maps.Copy(merged, env)
		ec.env = merged
	})
}

// ContextEnv returns a copy of the environment variables from ctx, or nil.
func ContextEnv(ctx context.Context) map[string]string {
	return maps.Clone(execFrom(ctx).env)
}

// ContextRun returns the session and run ids of the run that called the tool.
// Both are empty outside a run.
func ContextRun(ctx context.Context) (sessionID, runID string) {
	ec := execFrom(ctx)
	return ec.sessionID, ec.runID
}

func withRun(ctx context.Context, sessionID, runID string) context.Context {
	return withExec(ctx, func(ec *execContext) {
		ec.sessionID = sessionID
		ec.runID = runID
	})
}
