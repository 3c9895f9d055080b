// Package telemetry correlates tool-call start and completion events emitted by
// an agent runtime and derives latency, success and failure metrics from them.
//
// A [Collector] wires four parts together:
//
//   - [Classify] turns an opaque event into a [StartEvent], a [CompletionEvent]
//     or an [Ignored] value.
//   - [Table] holds in-flight calls keyed by call id.
//   - [Aggregator] keeps running counts and durations per kind.
//   - [Recorder] keeps the ordered timeline of completed calls and orphans.
//
// Problems in the observed stream (duplicate starts, completions without a
// start, malformed events) are counted and logged, never returned from
// [Collector.Ingest].
//
// # Quick Start
//
//	c := telemetry.New(telemetry.WithMaxTimeline(1000))
//	a := agent.NewAgent(agent.WithTelemetry(c))
//	stream := a.Run(ctx, "List the Go files here")
//	for stream.Next() {
//	}
//	snap := c.Snapshot()
//	fmt.Println(snap.TotalCalls, snap.PerKind["Glob"].AverageDuration)
package telemetry
