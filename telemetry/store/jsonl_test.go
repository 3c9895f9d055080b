package store_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/armatrix/agent-lessons/telemetry"
	"github.com/armatrix/agent-lessons/telemetry/store"
)

func TestWriteTimelineJSONL(t *testing.T) {
	report := sampleReport(t)

	var buf bytes.Buffer
	n, err := store.WriteTimelineJSONL(&buf, func(yield func(telemetry.Entry) bool) {
		for _, e := range report.Timeline {
			if !yield(e) {
				return
			}
		}
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "a", gjson.Get(lines[0], "call.call_id").String())
	assert.Equal(t, "success", gjson.Get(lines[0], "call.outcome").String())
	assert.Equal(t, "no such file", gjson.Get(lines[1], "call.error").String())
	assert.Equal(t, "orphan", gjson.Get(lines[2], "kind").String())
	assert.Equal(t, int64(3), gjson.Get(lines[2], "seq").Int())
}

func TestReadEventsJSONL_ReplayIntoCollector(t *testing.T) {
	input := strings.Join([]string{
		`{"call_id":"a","kind":"Bash","timestamp":100}`,
		``,
		`{"call_id":"b","kind":"Read","timestamp":100}`,
		`   `,
		`{"call_id":"a","timestamp":150,"outcome":"success"}`,
		`{"call_id":"b","timestamp":300,"outcome":"failure","output_or_error":"denied"}`,
		`not json`,
	}, "\n")

	c := telemetry.New()
	var lines []int
	err := store.ReadEventsJSONL(strings.NewReader(input), func(line int, raw json.RawMessage) error {
		lines = append(lines, line)
		c.Ingest(raw)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 5, 6, 7}, lines)

	snap := c.Snapshot()
	assert.Equal(t, 2, snap.TotalCalls)
	assert.Equal(t, 1, snap.FailedCalls)
	assert.Equal(t, 1, snap.MalformedEvents)
}

func TestReadEventsJSONL_StopsOnCallbackError(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	err := store.ReadEventsJSONL(strings.NewReader("{}\n{}\n{}\n"), func(int, json.RawMessage) error {
		calls++
		if calls == 2 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 2, calls)
}

func TestReadEventsJSONL_LineTooLong(t *testing.T) {
	input := "{}\n" + `{"pad":"` + strings.Repeat("x", store.MaxLineSize) + `"}` + "\n"
	err := store.ReadEventsJSONL(strings.NewReader(input), func(int, json.RawMessage) error { return nil })
	require.ErrorIs(t, err, store.ErrLineTooLong)
	assert.Contains(t, err.Error(), "line 2")
}
