package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/armatrix/agent-lessons/telemetry"
)

// MaxLineSize bounds a single line accepted by [ReadEventsJSONL].
const MaxLineSize = 4 << 20

// ErrLineTooLong is returned when an event line exceeds MaxLineSize.
var ErrLineTooLong = errors.New("store: event line too long")

// WriteTimelineJSONL writes one JSON object per timeline entry and returns
// the number of entries written.
func WriteTimelineJSONL(w io.Writer, seq iter.Seq[telemetry.Entry]) (int, error) {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	n := 0
	for e := range seq {
		if err := enc.Encode(PortableEntry(e)); err != nil {
			return n, fmt.Errorf("encode entry %d: %w", e.Seq, err)
		}
		n++
	}
	if err := bw.Flush(); err != nil {
		return n, fmt.Errorf("flush timeline: %w", err)
	}
	return n, nil
}

// ReadEventsJSONL calls fn with every non-blank line of r, numbered from 1.
// Lines are handed over as-is; deciding whether a line is a call event is
// left to the collector. Reading stops at the first error from fn.
func ReadEventsJSONL(r io.Reader, fn func(line int, raw json.RawMessage) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), MaxLineSize)

	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		raw := make(json.RawMessage, len(b))
		copy(raw, b)
		if err := fn(line, raw); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return fmt.Errorf("line %d: %w", line+1, ErrLineTooLong)
		}
		return fmt.Errorf("read events: %w", err)
	}
	return nil
}
