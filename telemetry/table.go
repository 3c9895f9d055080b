package telemetry

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Table correlates start and completion events by call id.
// It is safe for concurrent use.
type Table struct {
	mu      sync.Mutex
	pending map[string]PendingCall
}

// NewTable creates an empty correlation table.
func NewTable() *Table {
	return &Table{
		pending: make(map[string]PendingCall),
	}
}

// Begin records a new in-flight call. If callID is already pending the
// original entry is kept and ErrDuplicateCallID is returned.
func (t *Table) Begin(callID, kind string, at time.Time, input any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.pending[callID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateCallID, callID)
	}
	t.pending[callID] = PendingCall{
		CallID:    callID,
		Kind:      kind,
		StartedAt: at,
		Input:     input,
	}
	return nil
}

// Complete removes the pending call matching callID and returns it merged
// with the completion data. Without a match it returns an *OrphanError.
func (t *Table) Complete(callID string, at time.Time, outcome Outcome, payload any) (CompletedCall, error) {
	t.mu.Lock()
	p, ok := t.pending[callID]
	if ok {
		delete(t.pending, callID)
	}
	t.mu.Unlock()

	if !ok {
		return CompletedCall{}, &OrphanError{Orphan: Orphan{
			CallID:  callID,
			At:      at,
			Outcome: outcome,
			Payload: payload,
		}}
	}
	return newCompletedCall(p, at, outcome, payload), nil
}

// Lookup returns the pending call for callID without removing it.
func (t *Table) Lookup(callID string) (PendingCall, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pending[callID]
	return p, ok
}

// PendingCount returns the number of calls that have started but not completed.
func (t *Table) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Pending returns the in-flight calls ordered by start time, then call id.
func (t *Table) Pending() []PendingCall {
	t.mu.Lock()
	calls := make([]PendingCall, 0, len(t.pending))
	for _, p := range t.pending {
		calls = append(calls, p)
	}
	t.mu.Unlock()

	sort.Slice(calls, func(i, j int) bool {
		if calls[i].StartedAt.Equal(calls[j].StartedAt) {
			return calls[i].CallID < calls[j].CallID
		}
		return calls[i].StartedAt.Before(calls[j].StartedAt)
	})
	return calls
}
