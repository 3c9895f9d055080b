package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/creack/pty"

	agent "github.com/armatrix/agent-lessons"
)

const (
	defaultBashTimeoutMs = 120_000
	maxBashTimeoutMs     = 600_000
	maxOutputBytes       = 30_000

	// waitDelay bounds how long a killed command's pipes may stay open.
	waitDelay = 500 * time.Millisecond
)

// BashInput defines the input for the Bash tool.
type BashInput struct {
	Command     string `json:"command" jsonschema:"required,description=The command to execute"`
	Description string `json:"description,omitempty" jsonschema:"description=Description of what this command does"`
	Timeout     *int   `json:"timeout,omitempty" jsonschema:"description=Timeout in milliseconds (max 600000)"`
}

// BashTool executes shell commands. A non-zero exit status is reported as a
// failed call with the exit code appended to the output.
type BashTool struct {
	// NoPTY forces plain pipes instead of a pseudo-terminal.
	NoPTY bool
}

var _ agent.Tool[BashInput] = (*BashTool)(nil)

func (t *BashTool) Name() string        { return "Bash" }
func (t *BashTool) Description() string { return "Execute a bash command" }

func (t *BashTool) Execute(ctx context.Context, input BashInput) (*agent.ToolResult, error) {
	if input.Command == "" {
		return agent.ErrorResult("command is required"), nil
	}

	timeoutMs := defaultBashTimeoutMs
	if input.Timeout != nil && *input.Timeout > 0 {
		timeoutMs = min(*input.Timeout, maxBashTimeoutMs)
	}
	cmdCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
	defer cancel()

	output, waitErr := t.run(cmdCtx, input.Command)

	if errors.Is(cmdCtx.Err(), context.DeadlineExceeded) {
		return agent.ErrorResult(fmt.Sprintf("command timed out after %dms", timeoutMs)), nil
	}
	if ctx.Err() != nil {
		return agent.ErrorResult("command cancelled"), nil
	}

	output = clip(output, maxOutputBytes)
	if waitErr == nil {
		return agent.TextResult(output), nil
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	return agent.ErrorResult(fmt.Sprintf("%s\n[exit code %d]", output, exitCode)), nil
}

// run executes command under a PTY, falling back to pipes when no PTY can
// be allocated.
func (t *BashTool) run(ctx context.Context, command string) (string, error) {
	if !t.NoPTY {
		cmd := shell(ctx, command)
		if ptmx, err := pty.Start(cmd); err == nil {
			defer ptmx.Close()
			var buf bytes.Buffer
			_, _ = io.Copy(&buf, ptmx) // EIO once the child exits
			return buf.String(), cmd.Wait()
		}
	}

	out, err := shell(ctx, command).CombinedOutput()
	return string(out), err
}

func shell(ctx context.Context, command string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "bash", "-c", command)
	cmd.WaitDelay = waitDelay
	applyExecContext(ctx, cmd)
	return cmd
}
