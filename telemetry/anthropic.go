package telemetry

import "github.com/anthropics/anthropic-sdk-go"

// ObserveMessage ingests every tool_use block of an assistant message and
// returns how many were found.
func ObserveMessage(c *Collector, msg anthropic.Message) int {
	n := 0
	for _, block := range msg.Content {
		if block.Type != "tool_use" {
			continue
		}
		c.Ingest(block.AsToolUse())
		n++
	}
	return n
}

// ObserveToolResults ingests every tool_result block of a user message and
// returns how many were found.
func ObserveToolResults(c *Collector, msg anthropic.MessageParam) int {
	n := 0
	for _, block := range msg.Content {
		if block.OfToolResult == nil {
			continue
		}
		c.Ingest(block.OfToolResult)
		n++
	}
	return n
}

// ObserveHistory replays a stored conversation. Message params carry no
// timing, so every event is stamped with the collector clock: counts and
// outcomes are meaningful, durations are not.
func ObserveHistory(c *Collector, history []anthropic.MessageParam) int {
	n := 0
	for _, msg := range history {
		for _, block := range msg.Content {
			switch {
			case block.OfToolUse != nil:
				c.Ingest(StartEvent{
					CallID: block.OfToolUse.ID,
					Kind:   block.OfToolUse.Name,
					Input:  block.OfToolUse.Input,
				})
				n++
			case block.OfToolResult != nil:
				c.Ingest(block.OfToolResult)
				n++
			}
		}
	}
	return n
}
