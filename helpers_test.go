package agent

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
)

// scriptedStreamer replays canned SSE bodies, one per API call.
type scriptedStreamer struct {
	mu        sync.Mutex
	responses []string
	calls     int
}

func newScriptedStreamer(responses ...string) *scriptedStreamer {
	return &scriptedStreamer{responses: responses}
}

func (s *scriptedStreamer) NewStreaming(_ context.Context, _ anthropic.MessageNewParams) *ssestream.Stream[anthropic.MessageStreamEventUnion] {
	s.mu.Lock()
	idx := s.calls
	s.calls++
	s.mu.Unlock()

	if idx >= len(s.responses) {
		return ssestream.NewStream[anthropic.MessageStreamEventUnion](nil, fmt.Errorf("no more scripted responses"))
	}
	resp := &http.Response{
		StatusCode: 200,
		Body:       io.NopCloser(strings.NewReader(s.responses[idx])),
		Header:     http.Header{},
	}
	return ssestream.NewStream[anthropic.MessageStreamEventUnion](ssestream.NewDecoder(resp), nil)
}

func sse(events ...[2]string) string {
	var sb strings.Builder
	for _, e := range events {
		fmt.Fprintf(&sb, "event: %s\ndata: %s\n\n", e[0], e[1])
	}
	return sb.String()
}

func start(inputTokens int) [2]string {
	return [2]string{"message_start", fmt.Sprintf(`{"type":"message_start","message":{"id":"msg_test","type":"message","role":"assistant","content":[],"model":"claude-opus-4-6","stop_reason":null,"usage":{"input_tokens":%d,"output_tokens":0}}}`, inputTokens)}
}

func stop(reason string, outputTokens int) [][2]string {
	return [][2]string{
		{"message_delta", fmt.Sprintf(`{"type":"message_delta","delta":{"stop_reason":"%s","stop_sequence":null},"usage":{"output_tokens":%d}}`, reason, outputTokens)},
		{"message_stop", `{"type":"message_stop"}`},
	}
}

// textReply is a single-turn end_turn response.
func textReply(text string) string {
	events := [][2]string{
		start(100),
		{"content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`},
		{"content_block_delta", fmt.Sprintf(`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"%s"}}`, text)},
		{"content_block_stop", `{"type":"content_block_stop","index":0}`},
	}
	return sse(append(events, stop("end_turn", 50)...)...)
}

// toolReply requests tools in order; ids are "toolu_<name>".
func toolReply(names ...string) string {
	events := [][2]string{start(100)}
	for i, name := range names {
		events = append(events,
			[2]string{"content_block_start", fmt.Sprintf(`{"type":"content_block_start","index":%d,"content_block":{"type":"tool_use","id":"toolu_%s","name":"%s","input":{}}}`, i, name, name)},
			[2]string{"content_block_delta", fmt.Sprintf(`{"type":"content_block_delta","index":%d,"delta":{"type":"input_json_delta","partial_json":"{\"file_path\":\"/tmp/x\"}"}}`, i)},
			[2]string{"content_block_stop", fmt.Sprintf(`{"type":"content_block_stop","index":%d}`, i)},
		)
	}
	return sse(append(events, stop("tool_use", 50)...)...)
}

// drain consumes the stream and returns every event.
func drain(s *AgentStream) []Event {
	var events []Event
	for s.Next() {
		events = append(events, s.Current())
	}
	return events
}
