package telemetry

import "time"

// Outcome is the result of a finished call.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Valid reports whether o is one of the known outcomes.
func (o Outcome) Valid() bool {
	return o == OutcomeSuccess || o == OutcomeFailure
}

// PendingCall is an in-flight call waiting for its completion event.
type PendingCall struct {
	CallID    string    `json:"call_id"`
	Kind      string    `json:"kind"`
	StartedAt time.Time `json:"started_at"`
	Input     any       `json:"input,omitempty"`
}

// CompletedCall is the immutable record of a matched start/completion pair.
// Duration is EndedAt - StartedAt, clamped to zero (and Clamped set) when
// the completion carries an earlier timestamp than the start.
type CompletedCall struct {
	CallID    string        `json:"call_id"`
	Kind      string        `json:"kind"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
	Duration  time.Duration `json:"duration"`
	Outcome   Outcome       `json:"outcome"`
	Input     any           `json:"input,omitempty"`
	Output    any           `json:"output,omitempty"`
	Error     any           `json:"error,omitempty"`
	Clamped   bool          `json:"clamped,omitempty"`
}

// Succeeded reports whether the call finished with OutcomeSuccess.
func (c CompletedCall) Succeeded() bool { return c.Outcome == OutcomeSuccess }

// Payload returns the output for successful calls and the error otherwise.
func (c CompletedCall) Payload() any {
	if c.Succeeded() {
		return c.Output
	}
	return c.Error
}

// Orphan marks a completion event whose call id was never pending.
type Orphan struct {
	CallID  string    `json:"call_id"`
	At      time.Time `json:"at"`
	Outcome Outcome   `json:"outcome"`
	Payload any       `json:"payload,omitempty"`
}

func newCompletedCall(p PendingCall, at time.Time, outcome Outcome, payload any) CompletedCall {
	c := CompletedCall{
		CallID:    p.CallID,
		Kind:      p.Kind,
		StartedAt: p.StartedAt,
		EndedAt:   at,
		Outcome:   outcome,
		Input:     p.Input,
	}
	if outcome == OutcomeSuccess {
		c.Output = payload
	} else {
		c.Error = payload
	}
	c.Duration = at.Sub(p.StartedAt)
	if c.Duration < 0 {
		c.Duration = 0
		c.Clamped = true
	}
	return c
}
