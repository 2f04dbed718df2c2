package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when an entity with the requested id does not
	// exist in the underlying store.
	ErrNotFound = errors.New("chatstore: not found")

	// ErrStoreUnavailable is returned when the embedded environment could not
	// be opened, including after the recovery fallback was exhausted.
	ErrStoreUnavailable = errors.New("chatstore: store unavailable")
)

// SessionNotFoundError reports a referential-integrity violation: a write
// referenced a session id that does not resolve to an existing session.
type SessionNotFoundError struct {
	SessionID string
}

func (e *SessionNotFoundError) Error() string {
	return fmt.Sprintf("chatstore: session %q not found", e.SessionID)
}

// AgentNotFoundError reports that one or more agent ids referenced by a task
// could not be resolved through the agent registry.
type AgentNotFoundError struct {
	AgentIDs []string
}

func (e *AgentNotFoundError) Error() string {
	return fmt.Sprintf("chatstore: agents not found: %s", strings.Join(e.AgentIDs, ", "))
}

// CorruptionError wraps the underlying store error that triggered the
// corruption-recovery fallback. It is surfaced when recovery itself fails.
type CorruptionError struct {
	Path string
	Err  error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("chatstore: corruption detected at %s: %v", e.Path, e.Err)
}

// Unwrap exposes the underlying store error for errors.Is / errors.As.
func (e *CorruptionError) Unwrap() error { return e.Err }
