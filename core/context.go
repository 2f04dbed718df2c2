package core

import "time"

// ContextType classifies how much of the source agent's context is shared.
type ContextType string

const (
	// ContextTypeFull shares the complete context payload.
	ContextTypeFull ContextType = "full"
	// ContextTypeRelevant shares a filtered, relevance-selected subset.
	ContextTypeRelevant ContextType = "relevant"
	// ContextTypeSummary shares a condensed summary.
	ContextTypeSummary ContextType = "summary"
)

// Valid reports whether t is one of the known context types.
func (t ContextType) Valid() bool {
	switch t {
	case ContextTypeFull, ContextTypeRelevant, ContextTypeSummary:
		return true
	}
	return false
}

// SharedContext is a context handoff published by one agent for another.
// A non-nil ExpiresAt in the past makes the record logically deleted: list
// operations exclude it unless the caller explicitly asks for expired rows.
type SharedContext struct {
	ID            string         `json:"id"`
	SessionID     string         `json:"session_id,omitempty"`
	SourceAgentID string         `json:"source_agent_id"`
	TargetAgentID string         `json:"target_agent_id"`
	ContextType   ContextType    `json:"context_type"`
	Content       map[string]any `json:"content,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	ExpiresAt     *time.Time     `json:"expires_at,omitempty"`
}

// SetTTL stamps ExpiresAt ttl minutes from now. Zero minutes expires the
// record immediately.
func (c *SharedContext) SetTTL(minutes int) {
	exp := time.Now().UTC().Add(time.Duration(minutes) * time.Minute)
	c.ExpiresAt = &exp
}

// Expired reports whether the context is logically deleted as of now.
func (c *SharedContext) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}

// ContextPatch carries the fields of a partial context update. Nil fields are
// left untouched; Content replaces wholesale while Metadata merges key-wise.
// ClearExpiry removes the expiration entirely.
type ContextPatch struct {
	ContextType *ContextType
	Content     map[string]any
	Metadata    map[string]any
	ExpiresAt   *time.Time
	ClearExpiry bool
}

// AgentContextFilter narrows a ListByAgent query. Zero-value string fields
// match everything.
type AgentContextFilter struct {
	SessionID      string
	SourceAgentID  string
	IncludeExpired bool
}

// ContextRepository persists inter-agent shared contexts with TTL semantics.
type ContextRepository interface {
	// Create stores the context and, when session-scoped, its session index
	// entry in one transaction.
	Create(sc *SharedContext) (*SharedContext, error)
	// Get returns the context regardless of expiry, or ErrNotFound.
	Get(id string) (*SharedContext, error)
	// Update merges the patch into the stored record.
	Update(id string, patch ContextPatch) (*SharedContext, error)
	// ExtendTTL moves the expiry to max(now, current expiry) + minutes and
	// records the extension in the context metadata.
	ExtendTTL(id string, minutes int) (*SharedContext, error)
	// ListBySession returns the session's contexts in creation order.
	ListBySession(sessionID string, includeExpired bool) ([]*SharedContext, error)
	// ListByAgent returns contexts targeted at the agent, optionally narrowed
	// by session and source agent.
	ListByAgent(targetAgentID string, filter AgentContextFilter) ([]*SharedContext, error)
	// Delete removes the context and its session index entry. Returns
	// ErrNotFound if the context does not exist.
	Delete(id string) error
}
