package core

import "github.com/google/uuid"

// NewID generates a new unique identifier for sessions, messages, contexts
// and tasks. Repositories call this whenever a record arrives without an id.
func NewID() string { return uuid.NewString() }
