package agent

import (
	"errors"
	"fmt"

	"github.com/armatrix/agent-lessons/internal/engine"
)

// AgentStream is an iterator over events emitted during an agent run.
// Usage:
//
//	stream := agent.Run(ctx, "prompt")
//	for stream.Next() {
//	    event := stream.Current()
//	    // handle event
//	}
//	if err := stream.Err(); err != nil {
//	    // handle error
//	}
type AgentStream struct {
	events  chan Event
	current Event
	result  *ResultEvent
	err     error
	done    bool
	session *Session
}

// newStream creates a new AgentStream with the given event channel and session.
func newStream(events chan Event, session *Session) *AgentStream {
	return &AgentStream{
		events:  events,
		session: session,
	}
}

// errorStream returns a stream that yields no events and reports err.
func errorStream(err error, session *Session) *AgentStream {
	ch := make(chan Event)
	close(ch)
	s := newStream(ch, session)
	s.err = err
	return s
}

// Next advances to the next event. Returns false when the stream is exhausted.
func (s *AgentStream) Next() bool {
	if s.done {
		return false
	}
	event, ok := <-s.events
	if !ok {
		s.done = true
		return false
	}
	s.current = event
	if r, ok := event.(*ResultEvent); ok {
		s.result = r
		if s.err == nil {
			s.err = resultError(r)
		}
	}
	return true
}

// Current returns the most recent event returned by Next.
func (s *AgentStream) Current() Event {
	return s.current
}

// Err reports why the run ended unsuccessfully, if it did. It is only
// meaningful once Next has returned false.
func (s *AgentStream) Err() error {
	return s.err
}

// Result returns the final ResultEvent, or nil if the run has not finished.
func (s *AgentStream) Result() *ResultEvent {
	return s.result
}

// Session returns the session associated with this stream.
// The session is populated with conversation history after the run completes.
func (s *AgentStream) Session() *Session {
	return s.session
}

func resultError(r *ResultEvent) error {
	var base error
	switch r.Subtype {
	case engine.SubtypeSuccess:
		return nil
	case engine.SubtypeMaxTurns:
		base = ErrMaxTurns
	case engine.SubtypeMaxBudget:
		base = ErrBudgetExhausted
	case engine.SubtypeMaxTokens:
		base = ErrMaxTokens
	default:
		base = ErrRunFailed
	}
	if len(r.Errors) == 0 {
		return base
	}
	return fmt.Errorf("%w: %s", base, errors.Join(stringErrors(r.Errors)...))
}

func stringErrors(msgs []string) []error {
	errs := make([]error, len(msgs))
	for i, m := range msgs {
		errs[i] = errors.New(m)
	}
	return errs
}
