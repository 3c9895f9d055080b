package telemetry

import (
	"iter"
	"sync"
)

// EntryKind distinguishes timeline entries.
type EntryKind string

const (
	EntryCompleted EntryKind = "completed"
	EntryOrphan    EntryKind = "orphan"
)

// Entry is one line of the timeline. Exactly one of Call or Orphan is set,
// according to Kind.
type Entry struct {
	Seq    uint64         `json:"seq"`
	Kind   EntryKind      `json:"kind"`
	Call   *CompletedCall `json:"call,omitempty"`
	Orphan *Orphan        `json:"orphan,omitempty"`
}

// CompletedEntry wraps a completed call as a timeline entry.
func CompletedEntry(c CompletedCall) Entry {
	return Entry{Kind: EntryCompleted, Call: &c}
}

// OrphanEntry wraps an orphan marker as a timeline entry.
func OrphanEntry(o Orphan) Entry {
	return Entry{Kind: EntryOrphan, Orphan: &o}
}

// clone returns e with its own copies of Call and Orphan. Opaque payloads
// inside them are shared.
func (e Entry) clone() Entry {
	if e.Call != nil {
		c := *e.Call
		e.Call = &c
	}
	if e.Orphan != nil {
		o := *e.Orphan
		e.Orphan = &o
	}
	return e
}

// Recorder is an append-only, completion-ordered log of timeline entries with
// optional FIFO retention. It is safe for concurrent use.
type Recorder struct {
	mu         sync.Mutex
	entries    []Entry
	maxEntries int // 0 = unbounded
	nextSeq    uint64
	evicted    int
}

// NewRecorder creates a recorder keeping at most maxEntries entries.
// A maxEntries of 0 or less keeps everything.
func NewRecorder(maxEntries int) *Recorder {
	if maxEntries < 0 {
		maxEntries = 0
	}
	return &Recorder{maxEntries: maxEntries}
}

// Append stamps e with the next sequence number and adds it to the log,
// evicting the oldest entry when the retention limit is exceeded.
func (r *Recorder) Append(e Entry) Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextSeq++
	e.Seq = r.nextSeq
	r.entries = append(r.entries, e.clone())

	if r.maxEntries > 0 && len(r.entries) > r.maxEntries {
		drop := len(r.entries) - r.maxEntries
		clear(r.entries[:drop])
		r.entries = r.entries[drop:]
		r.evicted += drop
	}
	return e.clone()
}

// Export returns the log as it is now. Ranging over the result any number of
// times yields the same entries; later appends are not visible. Every entry
// handed out is a fresh copy, so writes through Call or Orphan never reach
// the log.
func (r *Recorder) Export() iter.Seq[Entry] {
	r.mu.Lock()
	snapshot := make([]Entry, len(r.entries))
	copy(snapshot, r.entries)
	r.mu.Unlock()

	return func(yield func(Entry) bool) {
		for _, e := range snapshot {
			if !yield(e.clone()) {
				return
			}
		}
	}
}

// Len returns the number of retained entries.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Evicted returns how many entries retention has dropped so far.
func (r *Recorder) Evicted() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evicted
}
