package telemetry

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Option configures a Collector.
type Option func(*collectorOptions)

type collectorOptions struct {
	clock       Clock
	logger      *slog.Logger
	maxTimeline int
}

// WithClock sets the clock used to stamp events that carry no timestamp.
func WithClock(c Clock) Option {
	return func(o *collectorOptions) { o.clock = c }
}

// WithLogger sets the logger for protocol violations. Defaults to discarding.
func WithLogger(l *slog.Logger) Option {
	return func(o *collectorOptions) { o.logger = l }
}

// WithMaxTimeline bounds the timeline to the n most recent entries (0 = unbounded).
func WithMaxTimeline(n int) Option {
	return func(o *collectorOptions) { o.maxTimeline = n }
}

// Collector observes call events and keeps the correlation table, metrics
// and timeline in step. It is safe for concurrent use.
type Collector struct {
	// mu serialises ingestion so the timeline follows completion order.
	mu       sync.Mutex
	table    *Table
	metrics  *Aggregator
	timeline *Recorder
	clock    Clock
	logger   *slog.Logger
}

// New creates a Collector.
func New(opts ...Option) *Collector {
	var o collectorOptions
	for _, fn := range opts {
		fn(&o)
	}
	if o.clock == nil {
		o.clock = RealClock{}
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return &Collector{
		table:    NewTable(),
		metrics:  NewAggregator(),
		timeline: NewRecorder(o.maxTimeline),
		clock:    o.clock,
		logger:   o.logger,
	}
}

// Ingest classifies raw and applies it. Problems with the event are counted
// and logged; Ingest never fails and never panics.
func (c *Collector) Ingest(raw any) (class Class) {
	defer func() {
		if r := recover(); r != nil {
			c.metrics.RecordMalformed()
			c.logger.Error("telemetry: recovered while ingesting event",
				slog.String("panic", fmt.Sprint(r)))
			class = ClassIgnore
		}
	}()

	ev := Classify(raw)
	switch ev := ev.(type) {
	case StartEvent:
		c.begin(ev)
	case CompletionEvent:
		c.complete(ev)
	case Ignored:
		if ev.Malformed {
			c.metrics.RecordMalformed()
			c.logger.Debug("telemetry: malformed event",
				slog.Any("error", ev.Err()),
				slog.String("type", fmt.Sprintf("%T", raw)))
		}
	}
	return ev.Class()
}

func (c *Collector) begin(ev StartEvent) {
	at := c.stamp(ev.Timestamp)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.table.Begin(ev.CallID, ev.Kind, at, ev.Input); err != nil {
		c.metrics.RecordDuplicate()
		c.logger.Warn("telemetry: duplicate start dropped",
			slog.String("call_id", ev.CallID),
			slog.String("kind", ev.Kind))
	}
}

func (c *Collector) complete(ev CompletionEvent) {
	at := c.stamp(ev.Timestamp)

	c.mu.Lock()
	defer c.mu.Unlock()

	call, err := c.table.Complete(ev.CallID, at, ev.Outcome, ev.Result)
	if err != nil {
		var orphan *OrphanError
		if errors.As(err, &orphan) {
			c.metrics.RecordOrphan()
			c.timeline.Append(OrphanEntry(orphan.Orphan))
			c.logger.Warn("telemetry: completion without start",
				slog.String("call_id", ev.CallID),
				slog.String("outcome", string(ev.Outcome)))
		}
		return
	}

	if call.Clamped {
		c.logger.Warn("telemetry: negative duration clamped",
			slog.String("call_id", call.CallID),
			slog.Time("started_at", call.StartedAt),
			slog.Time("ended_at", call.EndedAt))
	}
	c.metrics.Record(call)
	c.timeline.Append(CompletedEntry(call))
}

func (c *Collector) stamp(t time.Time) time.Time {
	if t.IsZero() {
		return c.clock.Now()
	}
	return t
}

// Snapshot returns the current metrics.
func (c *Collector) Snapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// ExportTimeline returns the timeline as it is now, in completion order.
func (c *Collector) ExportTimeline() iter.Seq[Entry] {
	return c.timeline.Export()
}

// PendingCount returns the number of calls still waiting for completion.
func (c *Collector) PendingCount() int {
	return c.table.PendingCount()
}

// Pending returns the calls still waiting for completion, oldest first.
func (c *Collector) Pending() []PendingCall {
	return c.table.Pending()
}

// Report bundles everything a collaborator needs to persist the collector state.
type Report struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Metrics     MetricsSnapshot `json:"metrics"`
	Timeline    []Entry         `json:"timeline"`
	Evicted     int             `json:"evicted,omitempty"`
	Pending     []PendingCall   `json:"pending,omitempty"`
}

// Report captures metrics, timeline and pending calls under one lock so the
// three views agree with each other.
func (c *Collector) Report() Report {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Report{
		GeneratedAt: c.clock.Now(),
		Metrics:     c.metrics.Snapshot(),
		Timeline:    slices.Collect(c.timeline.Export()),
		Evicted:     c.timeline.Evicted(),
		Pending:     c.table.Pending(),
	}
}
