package engine

import (
	"errors"
	"fmt"
	"strings"
)

// User-rejectable conditions. These are surfaced directly to the
// participant and are not faults.
var (
	ErrInvalidParams   = errors.New("invalid session parameters")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionEnded    = errors.New("session already ended")
	ErrEmptyMessage    = errors.New("message is empty")
	ErrMessageTooLong  = errors.New("message exceeds the maximum length")
	ErrSessionTooShort = errors.New("session has too few turns to end")
	ErrUnknownTopic    = errors.New("unknown topic")
)

// BlockedError is returned when the safety gate rejects a message.
// Nothing is recorded and the session stays active.
type BlockedError struct {
	Reason       string
	FlaggedTerms []string
}

func (e *BlockedError) Error() string {
	if len(e.FlaggedTerms) > 0 {
		return fmt.Sprintf("message blocked: %s (%s)", e.Reason, strings.Join(e.FlaggedTerms, ", "))
	}
	return "message blocked: " + e.Reason
}
