package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	agent "github.com/armatrix/agent-lessons"
)

const maxGlobResults = 500

// GlobInput defines the input for the Glob tool.
type GlobInput struct {
	Pattern string `json:"pattern" jsonschema:"required,description=The glob pattern to match files against"`
	Path    string `json:"path,omitempty" jsonschema:"description=The directory to search in"`
}

// GlobTool matches files using glob patterns.
type GlobTool struct{}

var _ agent.Tool[GlobInput] = (*GlobTool)(nil)

func (t *GlobTool) Name() string        { return "Glob" }
func (t *GlobTool) Description() string { return "Fast file pattern matching tool" }

func (t *GlobTool) Execute(ctx context.Context, input GlobInput) (*agent.ToolResult, error) {
	if input.Pattern == "" {
		return agent.ErrorResult("pattern is required"), nil
	}

	if !doublestar.ValidatePattern(input.Pattern) {
		return agent.ErrorResult(fmt.Sprintf("invalid pattern: %s", input.Pattern)), nil
	}

	basePath := resolvePath(ctx, input.Path)
	if basePath == "" {
		basePath = "."
	}
	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return agent.ErrorResult(fmt.Sprintf("invalid path: %s", err.Error())), nil
	}

	matches, err := doublestar.Glob(os.DirFS(absBase), input.Pattern, doublestar.WithFilesOnly())
	if err != nil {
		return agent.ErrorResult(fmt.Sprintf("glob error: %s", err.Error())), nil
	}

	if len(matches) == 0 {
		return agent.TextResult("No files matched the pattern."), nil
	}

	type match struct {
		path    string
		modTime int64
	}
	entries := make([]match, 0, len(matches))
	for _, m := range matches {
		full := filepath.Join(absBase, m)
		info, err := os.Stat(full)
		if err != nil {
			continue
		}
		entries = append(entries, match{path: full, modTime: info.ModTime().UnixNano()})
	}

	// Newest first; ties by path so output is stable.
	slices.SortFunc(entries, func(a, b match) int {
		if a.modTime != b.modTime {
			if a.modTime > b.modTime {
				return -1
			}
			return 1
		}
		return strings.Compare(a.path, b.path)
	})

	var b strings.Builder
	for i, e := range entries {
		if i == maxGlobResults {
			fmt.Fprintf(&b, "... %d more\n", len(entries)-maxGlobResults)
			break
		}
		b.WriteString(e.path)
		b.WriteByte('\n')
	}
	return agent.TextResult(b.String()), nil
}
