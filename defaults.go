package agent

const (
	// DefaultModel is used when no model is specified.
	DefaultModel = "claude-opus-4-6"

	// DefaultMaxOutputTokens is the default maximum output tokens per response.
	DefaultMaxOutputTokens = 16_384

	// DefaultMaxTurns is the default max turns (0 = unlimited).
	DefaultMaxTurns = 0

	// DefaultStreamBufferSize is the default channel buffer size for streaming events.
	DefaultStreamBufferSize = 64
)
