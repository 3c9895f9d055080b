package telemetry

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/tidwall/gjson"

	"github.com/armatrix/agent-lessons/hook"
)

// Class is the classification of an observed event.
type Class int

const (
	ClassIgnore Class = iota
	ClassStart
	ClassEnd
	ClassError
)

func (c Class) String() string {
	switch c {
	case ClassStart:
		return "start"
	case ClassEnd:
		return "end"
	case ClassError:
		return "error"
	default:
		return "ignore"
	}
}

// Classified is the result of [Classify]. Its concrete type is always one of
// [StartEvent], [CompletionEvent] or [Ignored].
type Classified interface {
	Class() Class
	classified()
}

// StartEvent announces that a call has begun.
type StartEvent struct {
	CallID    string    `json:"call_id"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Input     any       `json:"input,omitempty"`
}

func (StartEvent) Class() Class { return ClassStart }
func (StartEvent) classified()  {}

// CompletionEvent announces that a call has finished.
type CompletionEvent struct {
	CallID    string    `json:"call_id"`
	Timestamp time.Time `json:"timestamp"`
	Outcome   Outcome   `json:"outcome"`
	Result    any       `json:"output_or_error,omitempty"`
}

func (e CompletionEvent) Class() Class {
	if e.Outcome == OutcomeFailure {
		return ClassError
	}
	return ClassEnd
}
func (CompletionEvent) classified() {}

// Ignored is returned for events that are not call events. Malformed is set
// when the event had a recognised shape but could not be correlated.
type Ignored struct {
	Malformed bool
	Reason    string
}

func (Ignored) Class() Class { return ClassIgnore }
func (Ignored) classified()  {}

// Err returns an error wrapping ErrMalformedEvent when the event was
// malformed, and nil otherwise.
func (i Ignored) Err() error {
	if !i.Malformed {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrMalformedEvent, i.Reason)
}

// CallStarter is implemented by runtime events that open a call.
type CallStarter interface {
	CallStart() StartEvent
}

// CallCompleter is implemented by runtime events that close a call.
type CallCompleter interface {
	CallCompletion() CompletionEvent
}

// Classify inspects an opaque event and reports what it means for call
// correlation. It has no side effects and never panics: a CallStarter or
// CallCompleter that panics, a typed nil included, is reported as malformed.
func Classify(raw any) Classified {
	switch ev := raw.(type) {
	case nil:
		return Ignored{Reason: "nil event"}
	case StartEvent:
		return checkStart(ev)
	case *StartEvent:
		if ev == nil {
			return Ignored{Reason: "nil event"}
		}
		return checkStart(*ev)
	case CompletionEvent:
		return checkCompletion(ev)
	case *CompletionEvent:
		if ev == nil {
			return Ignored{Reason: "nil event"}
		}
		return checkCompletion(*ev)
	case hook.Input:
		return classifyHook(&ev)
	case *hook.Input:
		if ev == nil {
			return Ignored{Reason: "nil event"}
		}
		return classifyHook(ev)
	case anthropic.ToolUseBlock:
		return checkStart(StartEvent{CallID: ev.ID, Kind: ev.Name, Input: ev.Input})
	case anthropic.ToolResultBlockParam:
		return classifyToolResult(&ev)
	case *anthropic.ToolResultBlockParam:
		if ev == nil {
			return Ignored{Reason: "nil event"}
		}
		return classifyToolResult(ev)
	case json.RawMessage:
		return classifyJSON(ev)
	case []byte:
		return classifyJSON(ev)
	case map[string]any:
		b, err := json.Marshal(ev)
		if err != nil {
			return Ignored{Malformed: true, Reason: "unencodable map: " + err.Error()}
		}
		return classifyJSON(b)
	case CallStarter:
		return fromRuntime(func() Classified { return checkStart(ev.CallStart()) })
	case CallCompleter:
		return fromRuntime(func() Classified { return checkCompletion(ev.CallCompletion()) })
	default:
		return Ignored{}
	}
}

// fromRuntime runs a CallStarter or CallCompleter conversion, which is
// foreign code, turning a panic into a malformed event.
func fromRuntime(convert func() Classified) (c Classified) {
	defer func() {
		if r := recover(); r != nil {
			c = Ignored{Malformed: true, Reason: fmt.Sprintf("event conversion panicked: %v", r)}
		}
	}()
	return convert()
}

func checkStart(ev StartEvent) Classified {
	if ev.CallID == "" {
		return Ignored{Malformed: true, Reason: "start event without call id"}
	}
	return ev
}

func checkCompletion(ev CompletionEvent) Classified {
	if ev.CallID == "" {
		return Ignored{Malformed: true, Reason: "completion event without call id"}
	}
	if !ev.Outcome.Valid() {
		return Ignored{Malformed: true, Reason: "unknown outcome " + string(ev.Outcome)}
	}
	return ev
}

func classifyHook(in *hook.Input) Classified {
	switch in.Event {
	case hook.PreToolUse:
		return checkStart(StartEvent{
			CallID:    in.ToolUseID,
			Kind:      in.ToolName,
			Timestamp: in.Timestamp,
			Input:     in.ToolInput,
		})
	case hook.PostToolUse:
		return checkCompletion(CompletionEvent{
			CallID:    in.ToolUseID,
			Timestamp: in.Timestamp,
			Outcome:   OutcomeSuccess,
			Result:    in.ToolOutput,
		})
	case hook.PostToolUseFailure:
		var result any
		if in.ToolError != nil {
			result = in.ToolError.Error()
		}
		return checkCompletion(CompletionEvent{
			CallID:    in.ToolUseID,
			Timestamp: in.Timestamp,
			Outcome:   OutcomeFailure,
			Result:    result,
		})
	default:
		return Ignored{}
	}
}

func classifyToolResult(tr *anthropic.ToolResultBlockParam) Classified {
	outcome := OutcomeSuccess
	if tr.IsError.Value {
		outcome = OutcomeFailure
	}
	var parts []string
	for _, c := range tr.Content {
		if c.OfText != nil {
			parts = append(parts, c.OfText.Text)
		}
	}
	return checkCompletion(CompletionEvent{
		CallID:  tr.ToolUseID,
		Outcome: outcome,
		Result:  strings.Join(parts, "\n"),
	})
}

// classifyJSON recognises three JSON shapes: the generic start/completion
// records, Claude hook payloads, and SDK tool_use / tool_result blocks.
func classifyJSON(b []byte) Classified {
	if !gjson.ValidBytes(b) {
		return Ignored{Malformed: true, Reason: "invalid json"}
	}
	r := gjson.ParseBytes(b)
	if !r.IsObject() {
		return Ignored{}
	}

	ts, ok := parseTimestamp(r.Get("timestamp"))
	if !ok {
		return Ignored{Malformed: true, Reason: "invalid timestamp"}
	}

	if name := r.Get("hook_event_name"); name.Exists() {
		return classifyHookJSON(r, name.String(), ts)
	}

	switch r.Get("type").String() {
	case "tool_use":
		return checkStart(StartEvent{
			CallID:    r.Get("id").String(),
			Kind:      r.Get("name").String(),
			Timestamp: ts,
			Input:     rawField(r, "input"),
		})
	case "tool_result":
		outcome := OutcomeSuccess
		if r.Get("is_error").Bool() {
			outcome = OutcomeFailure
		}
		return checkCompletion(CompletionEvent{
			CallID:    r.Get("tool_use_id").String(),
			Timestamp: ts,
			Outcome:   outcome,
			Result:    rawField(r, "content"),
		})
	}

	if outcome := r.Get("outcome"); outcome.Exists() {
		return checkCompletion(CompletionEvent{
			CallID:    r.Get("call_id").String(),
			Timestamp: ts,
			Outcome:   Outcome(strings.ToLower(outcome.String())),
			Result:    rawField(r, "output_or_error"),
		})
	}
	if kind := r.Get("kind"); kind.Exists() {
		return checkStart(StartEvent{
			CallID:    r.Get("call_id").String(),
			Kind:      kind.String(),
			Timestamp: ts,
			Input:     rawField(r, "input"),
		})
	}
	if r.Get("call_id").Exists() {
		return Ignored{Malformed: true, Reason: "call_id without kind or outcome"}
	}
	return Ignored{}
}

func classifyHookJSON(r gjson.Result, name string, ts time.Time) Classified {
	switch hook.Event(name) {
	case hook.PreToolUse:
		return checkStart(StartEvent{
			CallID:    r.Get("tool_use_id").String(),
			Kind:      r.Get("tool_name").String(),
			Timestamp: ts,
			Input:     rawField(r, "tool_input"),
		})
	case hook.PostToolUse:
		return checkCompletion(CompletionEvent{
			CallID:    r.Get("tool_use_id").String(),
			Timestamp: ts,
			Outcome:   OutcomeSuccess,
			Result:    rawField(r, "tool_response"),
		})
	case hook.PostToolUseFailure:
		return checkCompletion(CompletionEvent{
			CallID:    r.Get("tool_use_id").String(),
			Timestamp: ts,
			Outcome:   OutcomeFailure,
			Result:    rawField(r, "error"),
		})
	default:
		return Ignored{}
	}
}

// parseTimestamp accepts Unix milliseconds or an RFC 3339 string. A missing
// field yields the zero time.
// maxUnixMillis bounds numeric timestamps to what fits in int64 nanoseconds.
const maxUnixMillis = float64(math.MaxInt64 / int64(time.Millisecond))

func parseTimestamp(v gjson.Result) (time.Time, bool) {
	switch v.Type {
	case gjson.Null:
		return time.Time{}, true
	case gjson.Number:
		ms := v.Float()
		if math.IsNaN(ms) || ms > maxUnixMillis || ms < -maxUnixMillis {
			return time.Time{}, false
		}
		return time.Unix(0, int64(ms*float64(time.Millisecond))), true
	case gjson.String:
		t, err := time.Parse(time.RFC3339Nano, v.String())
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	default:
		return time.Time{}, false
	}
}

func rawField(r gjson.Result, path string) json.RawMessage {
	v := r.Get(path)
	if !v.Exists() {
		return nil
	}
	return json.RawMessage(v.Raw)
}
