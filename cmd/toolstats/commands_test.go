package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/armatrix/agent-lessons/telemetry/store"
)

const events = `{"call_id":"a","kind":"Bash","timestamp":100}
{"call_id":"b","kind":"Read","timestamp":110}
{"call_id":"a","timestamp":150,"outcome":"success","output_or_error":"ok"}
{"call_id":"b","timestamp":310,"outcome":"failure","output_or_error":"denied"}
{"call_id":"zzz","timestamp":320,"outcome":"success"}
{"call_id":"c","kind":"Glob","timestamp":400}
`

// harness runs the CLI against a temporary store and settings file.
type harness struct {
	t        *testing.T
	store    string
	settings string
}

func newHarness(t *testing.T, settingsYAML string) *harness {
	t.Helper()
	dir := t.TempDir()
	h := &harness{t: t, store: filepath.Join(dir, "reports"), settings: filepath.Join(dir, "settings.yaml")}
	require.NoError(t, os.WriteFile(h.settings, []byte(settingsYAML), 0o644))
	return h
}

func (h *harness) run(stdin string, args ...string) (string, string, error) {
	h.t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"-f", h.settings, "--store", h.store}, args...)
	err := run(full, strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestReplay_TextReport(t *testing.T) {
	h := newHarness(t, "")
	out, _, err := h.run(events, "replay")
	require.NoError(t, err)

	assert.Contains(t, out, "calls: 2  ok: 1  failed: 1  success: 50.0%")
	assert.Contains(t, out, "pending: 1  orphans: 1")
	assert.Regexp(t, `Bash\s+1\s+1\s+0\s+50ms`, out)
	assert.Regexp(t, `Read\s+1\s+0\s+1\s+200ms`, out)
	assert.NotContains(t, out, "Glob")
}

func TestReplay_JSONReport(t *testing.T) {
	h := newHarness(t, "")
	out, _, err := h.run(events, "replay", "-o", "json")
	require.NoError(t, err)

	assert.Equal(t, int64(2), gjson.Get(out, "metrics.total_calls").Int())
	assert.Equal(t, int64(1), gjson.Get(out, "metrics.orphaned_completions").Int())
	assert.Equal(t, int64(1), gjson.Get(out, "pending").Int())
	assert.Equal(t, int64(3), gjson.Get(out, "timeline_entries").Int())
	assert.InDelta(t, 0.5, gjson.Get(out, "success_rate").Float(), 1e-9)
}

func TestReplay_TimelineMaxFromSettings(t *testing.T) {
	h := newHarness(t, "telemetry:\n  timelineMax: 2\n")
	out, _, err := h.run(events, "replay", "-o", "json")
	require.NoError(t, err)
	assert.Equal(t, int64(2), gjson.Get(out, "timeline_entries").Int())
	assert.Equal(t, int64(1), gjson.Get(out, "evicted").Int())

	// The flag wins over settings.
	out, _, err = h.run(events, "replay", "-o", "json", "--max-timeline", "1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), gjson.Get(out, "timeline_entries").Int())
}

func TestReplay_TimelineToStdout(t *testing.T) {
	h := newHarness(t, "")
	out, _, err := h.run(events, "replay", "--timeline", "-")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "a", gjson.Get(lines[0], "call.call_id").String())
	assert.Equal(t, "b", gjson.Get(lines[1], "call.call_id").String())
	assert.Equal(t, "orphan", gjson.Get(lines[2], "kind").String())
}

func TestReplay_TimelineToFile(t *testing.T) {
	h := newHarness(t, "")
	path := filepath.Join(t.TempDir(), "timeline.jsonl")
	out, _, err := h.run(events, "replay", "--timeline", path)
	require.NoError(t, err)
	assert.Contains(t, out, "calls: 2")

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(b), "\n"))
}

func TestReplay_FilesInOrder(t *testing.T) {
	h := newHarness(t, "")
	dir := t.TempDir()
	first := filepath.Join(dir, "1.jsonl")
	second := filepath.Join(dir, "2.jsonl")
	require.NoError(t, os.WriteFile(first, []byte(`{"call_id":"x","kind":"Bash","timestamp":0}`+"\n"), 0o644))
	require.NoError(t, os.WriteFile(second, []byte(`{"call_id":"x","timestamp":5,"outcome":"success"}`+"\n"), 0o644))

	out, _, err := h.run("", "replay", "-o", "json", first, second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), gjson.Get(out, "metrics.successful_calls").Int())
	assert.Equal(t, int64(0), gjson.Get(out, "pending").Int())
}

func TestReplay_MissingFile(t *testing.T) {
	h := newHarness(t, "")
	_, _, err := h.run("", "replay", filepath.Join(t.TempDir(), "nope.jsonl"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReplay_Strict(t *testing.T) {
	h := newHarness(t, "")
	_, _, err := h.run(events+"not json\n", "replay")
	require.NoError(t, err)

	_, _, err = h.run(events+"not json\n", "replay", "--strict")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 7")
}

func TestReplay_DebugLogsEachLine(t *testing.T) {
	h := newHarness(t, "")
	_, logs, err := h.run(events, "--debug", "--log-json", "replay")
	require.NoError(t, err)
	assert.Contains(t, logs, `"class":"start"`)
	assert.Contains(t, logs, `"msg":"replay finished"`)
}

func TestReplay_BadSettings(t *testing.T) {
	h := newHarness(t, "telemetry: [")
	_, _, err := h.run(events, "replay")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "settings.yaml")
}

func TestSaveShowListDelete(t *testing.T) {
	h := newHarness(t, "")

	_, _, err := h.run(events, "replay", "--save", "run-1")
	require.NoError(t, err)
	_, _, err = h.run(events, "replay", "--save", "run-2")
	require.NoError(t, err)

	out, _, err := h.run("", "list")
	require.NoError(t, err)
	assert.Equal(t, "run-1\nrun-2\n", out)

	out, _, err = h.run("", "show", "run-1")
	require.NoError(t, err)
	assert.Contains(t, out, "calls: 2  ok: 1  failed: 1")

	out, _, err = h.run("", "show", "--timeline", "run-1")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 3)

	_, _, err = h.run("", "rm", "run-1")
	require.NoError(t, err)
	out, _, err = h.run("", "list")
	require.NoError(t, err)
	assert.Equal(t, "run-2\n", out)

	_, _, err = h.run("", "show", "run-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStoreDirFromSettings(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "from-settings")
	settings := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(settings, []byte(`{"telemetry":{"storeDir":"`+dir+`"}}`), 0o644))

	var stdout, stderr bytes.Buffer
	err := run([]string{"-f", settings, "replay", "--save", "s"}, strings.NewReader(events), &stdout, &stderr)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "s.json"))
}

func TestReplay_LogFile(t *testing.T) {
	h := newHarness(t, "")
	logPath := filepath.Join(t.TempDir(), "logs", "toolstats.log")

	out, stderr, err := h.run(events, "--log-file", logPath, "replay")
	require.NoError(t, err)
	assert.Contains(t, out, "calls: 2")
	assert.Empty(t, stderr)

	b, err := os.ReadFile(logPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.NotEmpty(t, lines)
	assert.Equal(t, "telemetry: completion without start", gjson.Get(lines[0], "msg").String())
	assert.Equal(t, "replay finished", gjson.Get(lines[len(lines)-1], "msg").String())
}
