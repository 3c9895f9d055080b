package tools

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	agent "github.com/armatrix/agent-lessons"
)

const (
	defaultReadLimit   = 2000
	maxLineLength      = 2000
	truncationSuffix   = "... [truncated]"
	lineNumberTabWidth = 6
)

// ReadInput defines the input for the Read tool.
type ReadInput struct {
	FilePath string `json:"file_path" jsonschema:"required,description=Path of the file to read; relative paths use the working directory"`
	Offset   *int   `json:"offset,omitempty" jsonschema:"description=The line number to start reading from (1-based)"`
	Limit    *int   `json:"limit,omitempty" jsonschema:"description=The number of lines to read"`
}

// ReadTool returns a slice of a file with right-aligned line numbers.
type ReadTool struct{}

var _ agent.Tool[ReadInput] = (*ReadTool)(nil)

func (t *ReadTool) Name() string        { return "Read" }
func (t *ReadTool) Description() string { return "Read a file from the local filesystem" }

func (t *ReadTool) Execute(ctx context.Context, input ReadInput) (*agent.ToolResult, error) {
	if input.FilePath == "" {
		return agent.ErrorResult("file_path is required"), nil
	}

	path := resolvePath(ctx, input.FilePath)
	info, err := os.Stat(path)
	if err != nil {
		return agent.ErrorResult(fmt.Sprintf("failed to open file: %s", err.Error())), nil
	}
	if info.IsDir() {
		return agent.ErrorResult(fmt.Sprintf("%s is a directory", path)), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return agent.ErrorResult(fmt.Sprintf("failed to open file: %s", err.Error())), nil
	}
	defer f.Close()

	limit := defaultReadLimit
	if input.Limit != nil && *input.Limit > 0 {
		limit = *input.Limit
	}
	offset := 1
	if input.Offset != nil && *input.Offset > 0 {
		offset = *input.Offset
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var b strings.Builder
	lineNum, written := 0, 0
	for written < limit && scanner.Scan() {
		lineNum++
		if lineNum < offset {
			continue
		}
		line := scanner.Text()
		if len(line) > maxLineLength {
			line = line[:maxLineLength-len(truncationSuffix)] + truncationSuffix
		}
		fmt.Fprintf(&b, "%*d\t%s\n", lineNumberTabWidth, lineNum, line)
		written++
	}
	if err := scanner.Err(); err != nil {
		return agent.ErrorResult(fmt.Sprintf("error reading file: %s", err.Error())), nil
	}

	switch {
	case lineNum == 0:
		return agent.TextResult("(empty file)"), nil
	case written == 0:
		return agent.TextResult(fmt.Sprintf("(offset %d is past the end of the file, which has %d lines)", offset, lineNum)), nil
	}
	return agent.TextResult(b.String()), nil
}
