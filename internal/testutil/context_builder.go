package testutil

import (
	"time"

	"github.com/chatmesh/chatstore/core"
)

// ContextBuilder helps construct shared contexts with fluent chaining for
// tests.
type ContextBuilder struct {
	sc core.SharedContext
}

// NewContextBuilder creates a builder for a context from source to target.
func NewContextBuilder(sourceAgentID, targetAgentID string) *ContextBuilder {
	return &ContextBuilder{sc: core.SharedContext{
		SourceAgentID: sourceAgentID,
		TargetAgentID: targetAgentID,
		ContextType:   core.ContextTypeRelevant,
	}}
}

// Session scopes the context to a session (chainable).
func (b *ContextBuilder) Session(sessionID string) *ContextBuilder {
	b.sc.SessionID = sessionID
	return b
}

// Type sets the context type (chainable).
func (b *ContextBuilder) Type(t core.ContextType) *ContextBuilder {
	b.sc.ContextType = t
	return b
}

// Content sets a content key/value pair (chainable).
func (b *ContextBuilder) Content(key string, val any) *ContextBuilder {
	if b.sc.Content == nil {
		b.sc.Content = map[string]any{}
	}
	b.sc.Content[key] = val
	return b
}

// TTL stamps an expiry the given minutes from now (chainable).
func (b *ContextBuilder) TTL(minutes int) *ContextBuilder {
	b.sc.SetTTL(minutes)
	return b
}

// ExpiresAt pins an explicit expiry (chainable).
func (b *ContextBuilder) ExpiresAt(ts time.Time) *ContextBuilder {
	b.sc.ExpiresAt = &ts
	return b
}

// Build returns a *core.SharedContext with the accumulated fields.
func (b *ContextBuilder) Build() *core.SharedContext {
	sc := b.sc
	return &sc
}
