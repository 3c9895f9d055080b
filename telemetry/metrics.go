package telemetry

import (
	"sync"
	"time"
)

// KindStats summarises completed calls of a single kind.
type KindStats struct {
	Count           int           `json:"count"`
	Successes       int           `json:"successes"`
	Failures        int           `json:"failures"`
	TotalDuration   time.Duration `json:"total_duration"`
	MinDuration     time.Duration `json:"min_duration"`
	MaxDuration     time.Duration `json:"max_duration"`
	AverageDuration time.Duration `json:"average_duration"`
}

// MetricsSnapshot is a point-in-time copy of the aggregated metrics.
//
// TotalCalls always equals SuccessfulCalls + FailedCalls, and the Count
// fields of PerKind sum to TotalCalls. Orphaned completions are counted
// separately and never contribute to durations.
type MetricsSnapshot struct {
	TotalCalls          int                  `json:"total_calls"`
	SuccessfulCalls     int                  `json:"successful_calls"`
	FailedCalls         int                  `json:"failed_calls"`
	OrphanedCompletions int                  `json:"orphaned_completions"`
	DuplicateStarts     int                  `json:"duplicate_starts"`
	MalformedEvents     int                  `json:"malformed_events"`
	ClampedDurations    int                  `json:"clamped_durations"`
	PerKind             map[string]KindStats `json:"per_kind"`
}

// SuccessRate returns SuccessfulCalls / TotalCalls, or 0 with no calls.
func (s MetricsSnapshot) SuccessRate() float64 {
	if s.TotalCalls == 0 {
		return 0
	}
	return float64(s.SuccessfulCalls) / float64(s.TotalCalls)
}

type kindTotals struct {
	count     int
	successes int
	failures  int
	total     time.Duration
	min       time.Duration
	max       time.Duration
}

// Aggregator accumulates counts and durations of completed calls.
// It is safe for concurrent use.
type Aggregator struct {
	mu        sync.Mutex
	succeeded int
	failed    int
	orphaned  int
	duplicate int
	malformed int
	clamped   int
	perKind   map[string]*kindTotals
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		perKind: make(map[string]*kindTotals),
	}
}

// Record adds a completed call to the running totals.
func (a *Aggregator) Record(c CompletedCall) {
	a.mu.Lock()
	defer a.mu.Unlock()

	kt, ok := a.perKind[c.Kind]
	if !ok {
		kt = &kindTotals{min: c.Duration, max: c.Duration}
		a.perKind[c.Kind] = kt
	}
	kt.count++
	kt.total += c.Duration
	if c.Duration < kt.min {
		kt.min = c.Duration
	}
	if c.Duration > kt.max {
		kt.max = c.Duration
	}

	if c.Succeeded() {
		a.succeeded++
		kt.successes++
	} else {
		a.failed++
		kt.failures++
	}
	if c.Clamped {
		a.clamped++
	}
}

// RecordOrphan counts a completion that had no matching start.
func (a *Aggregator) RecordOrphan() {
	a.mu.Lock()
	a.orphaned++
	a.mu.Unlock()
}

// RecordDuplicate counts a rejected duplicate start.
func (a *Aggregator) RecordDuplicate() {
	a.mu.Lock()
	a.duplicate++
	a.mu.Unlock()
}

// RecordMalformed counts an event that looked like a call event but could
// not be correlated.
func (a *Aggregator) RecordMalformed() {
	a.mu.Lock()
	a.malformed++
	a.mu.Unlock()
}

// Snapshot returns a consistent copy of the current metrics. Averages are
// derived here from the stored totals.
func (a *Aggregator) Snapshot() MetricsSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	perKind := make(map[string]KindStats, len(a.perKind))
	for kind, kt := range a.perKind {
		stats := KindStats{
			Count:         kt.count,
			Successes:     kt.successes,
			Failures:      kt.failures,
			TotalDuration: kt.total,
			MinDuration:   kt.min,
			MaxDuration:   kt.max,
		}
		if kt.count > 0 {
			stats.AverageDuration = kt.total / time.Duration(kt.count)
		}
		perKind[kind] = stats
	}

	return MetricsSnapshot{
		TotalCalls:          a.succeeded + a.failed,
		SuccessfulCalls:     a.succeeded,
		FailedCalls:         a.failed,
		OrphanedCompletions: a.orphaned,
		DuplicateStarts:     a.duplicate,
		MalformedEvents:     a.malformed,
		ClampedDurations:    a.clamped,
		PerKind:             perKind,
	}
}
