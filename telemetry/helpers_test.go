package telemetry

import (
	"sync"
	"time"
)

// at returns a timestamp ms milliseconds after the Unix epoch.
func at(ms int64) time.Time {
	return time.Unix(0, ms*int64(time.Millisecond))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(ms int64) *fakeClock {
	return &fakeClock{now: at(ms)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func start(id, kind string, ms int64) StartEvent {
	return StartEvent{CallID: id, Kind: kind, Timestamp: at(ms)}
}

func done(id string, ms int64, outcome Outcome) CompletionEvent {
	return CompletionEvent{CallID: id, Timestamp: at(ms), Outcome: outcome}
}
