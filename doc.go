// Package agent runs Claude agents against the Anthropic API and reports
// every tool call they make.
//
// [Agent] holds configuration and tools; each run streams typed events
// through an [AgentStream]. Tool calls surface as a [ToolUseEvent] followed
// by exactly one [ToolResultEvent] with the same id, which makes the stream
// directly consumable by a [telemetry.Collector].
//
// # Quick Start
//
//	c := telemetry.New()
//	a := agent.NewAgent(
//	    agent.WithModel(anthropic.ModelClaudeSonnet4_5),
//	    agent.WithTelemetry(c),
//	)
//	tools.RegisterAll(a.Tools())
//	stream := a.Run(ctx, "What files are in this directory?")
//	for stream.Next() {
//	    if e, ok := stream.Current().(*agent.StreamEvent); ok {
//	        fmt.Print(e.Delta)
//	    }
//	}
//	fmt.Println(c.Snapshot().SuccessRate())
//
// # Sub-packages
//
//   - [telemetry] correlates tool calls into metrics and a timeline.
//   - [tools] provides built-in lesson tools (Bash, Glob, Read).
//   - [hook] provides hook types for intercepting tool execution.
//   - [permission] provides permission types for access control.
package agent
