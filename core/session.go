package core

import "time"

// Session represents a conversational container. It exclusively owns its
// messages and session-scoped shared contexts: deleting a session cascades to
// every dependent record.
//
// Contract:
//   - CreatedAt / UpdatedAt are server-assigned (UTC)
//   - Metadata is free-form and merged key-wise on update
//   - Repositories return detached copies safe for caller mutation.
type Session struct {
	ID          string         `json:"id"`
	Title       string         `json:"title,omitempty"`
	SessionType string         `json:"session_type,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// NewSession creates a session with the given id and title, stamping both
// timestamps. An empty id is replaced with a generated one by the repository.
func NewSession(id, title string) *Session {
	now := time.Now().UTC()
	return &Session{ID: id, Title: title, Metadata: map[string]any{}, CreatedAt: now, UpdatedAt: now}
}

// SessionPatch carries the fields of a partial session update. Nil pointer
// fields are left untouched; Metadata keys are merged into the existing map.
type SessionPatch struct {
	Title       *string
	SessionType *string
	Metadata    map[string]any
}

// SessionRepository persists sessions and owns the cascading delete across
// dependent messages and shared contexts.
type SessionRepository interface {
	// Create stores the session, assigning id and timestamps when absent.
	// Creating an id that already exists returns the stored session unchanged.
	Create(session *Session) (*Session, error)
	// Get returns the session or ErrNotFound.
	Get(id string) (*Session, error)
	// List returns sessions ordered by creation time descending.
	List(skip, limit int) ([]*Session, error)
	// Update merges the patch and stamps UpdatedAt.
	Update(id string, patch SessionPatch) (*Session, error)
	// Delete removes the session and every message and shared context it
	// owns, all-or-nothing. Returns ErrNotFound if the session is absent.
	Delete(id string) error
}
