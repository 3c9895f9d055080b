// Package config loads agent and telemetry settings from JSON or YAML files.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Settings holds merged configuration from multiple sources.
// Later sources override earlier ones (user < project < local).
type Settings struct {
	Model          string    `json:"model,omitempty" yaml:"model,omitempty"`
	SystemPrompt   string    `json:"systemPrompt,omitempty" yaml:"systemPrompt,omitempty"`
	MaxTurns       int       `json:"maxTurns,omitempty" yaml:"maxTurns,omitempty"`
	MaxBudgetUSD   float64   `json:"maxBudgetUSD,omitempty" yaml:"maxBudgetUSD,omitempty"`
	PermissionMode string    `json:"permissionMode,omitempty" yaml:"permissionMode,omitempty"`
	Telemetry      Telemetry `json:"telemetry,omitempty" yaml:"telemetry,omitempty"`
}

// Telemetry configures tool-call collection.
type Telemetry struct {
	// TimelineMax bounds the in-memory timeline (0 = unbounded).
	TimelineMax int `json:"timelineMax,omitempty" yaml:"timelineMax,omitempty"`
	// StoreDir is where reports are saved.
	StoreDir string `json:"storeDir,omitempty" yaml:"storeDir,omitempty"`
}

// LoadSettings merges settings from multiple file paths. Files ending in
// .yaml or .yml are parsed as YAML, everything else as JSON. Later paths
// override earlier ones. Missing files are skipped; unreadable or invalid
// files are an error.
func LoadSettings(paths ...string) (*Settings, error) {
	merged := &Settings{}
	for _, path := range paths {
		s, err := loadSettingsFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
		mergeSettings(merged, s)
	}
	return merged, nil
}

// DefaultSettingsPaths returns the standard settings file search paths.
func DefaultSettingsPaths(projectDir string) []string {
	home, _ := os.UserHomeDir()
	var paths []string

	if home != "" {
		paths = append(paths,
			filepath.Join(home, ".agent-lessons", "settings.json"),
			filepath.Join(home, ".agent-lessons", "settings.yaml"),
		)
	}
	if projectDir != "" {
		paths = append(paths,
			filepath.Join(projectDir, ".agent-lessons", "settings.json"),
			filepath.Join(projectDir, ".agent-lessons", "settings.yaml"),
			filepath.Join(projectDir, ".agent-lessons", "settings.local.yaml"),
		)
	}
	return paths
}

func loadSettingsFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var s Settings
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &s)
	default:
		err = json.Unmarshal(data, &s)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func mergeSettings(dst, src *Settings) {
	if src.Model != "" {
		dst.Model = src.Model
	}
	if src.SystemPrompt != "" {
		dst.SystemPrompt = src.SystemPrompt
	}
	if src.MaxTurns > 0 {
		dst.MaxTurns = src.MaxTurns
	}
	if src.MaxBudgetUSD > 0 {
		dst.MaxBudgetUSD = src.MaxBudgetUSD
	}
	if src.PermissionMode != "" {
		dst.PermissionMode = src.PermissionMode
	}
	if src.Telemetry.TimelineMax > 0 {
		dst.Telemetry.TimelineMax = src.Telemetry.TimelineMax
	}
	if src.Telemetry.StoreDir != "" {
		dst.Telemetry.StoreDir = src.Telemetry.StoreDir
	}
}
