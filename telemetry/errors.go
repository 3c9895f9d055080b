package telemetry

import (
	"errors"
	"fmt"
)

// Sentinel errors describing protocol violations in the observed event stream.
var (
	ErrDuplicateCallID     = errors.New("telemetry: duplicate call id")
	ErrUnmatchedCompletion = errors.New("telemetry: completion without matching start")
	ErrMalformedEvent      = errors.New("telemetry: malformed event")
)

// OrphanError is returned by [Table.Complete] when no pending call matches.
type OrphanError struct {
	Orphan Orphan
}

func (e *OrphanError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnmatchedCompletion.Error(), e.Orphan.CallID)
}

func (e *OrphanError) Unwrap() error { return ErrUnmatchedCompletion }
