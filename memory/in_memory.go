package memory

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/chatmesh/chatstore/core"
)

// InMemoryContextStore is a volatile core.ContextRepository storing shared
// contexts in a process local map. It is safe for concurrent access and best
// suited for tests or ephemeral demo servers. Each returned context is cloned
// to prevent external mutation of internal state.
type InMemoryContextStore struct {
	mu       sync.RWMutex
	contexts map[string]*core.SharedContext
}

// NewInMemoryContextStore constructs an empty in-memory context store.
func NewInMemoryContextStore() *InMemoryContextStore {
	return &InMemoryContextStore{contexts: make(map[string]*core.SharedContext)}
}

// Create stores a clone of the provided context, assigning server fields.
func (s *InMemoryContextStore) Create(sc *core.SharedContext) (*core.SharedContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := clone(sc)
	if c.ID == "" {
		c.ID = core.NewID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.ContextType == "" {
		c.ContextType = core.ContextTypeRelevant
	}
	if !c.ContextType.Valid() {
		return nil, fmt.Errorf("memory: invalid context type %q", c.ContextType)
	}
	s.contexts[c.ID] = c
	return clone(c), nil
}

// Get returns the context regardless of expiry, or core.ErrNotFound.
func (s *InMemoryContextStore) Get(id string) (*core.SharedContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contexts[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return clone(c), nil
}

// Update merges the patch into the stored context.
func (s *InMemoryContextStore) Update(id string, patch core.ContextPatch) (*core.SharedContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contexts[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	if patch.ContextType != nil {
		c.ContextType = *patch.ContextType
	}
	if patch.Content != nil {
		c.Content = patch.Content
	}
	if len(patch.Metadata) > 0 {
		if c.Metadata == nil {
			c.Metadata = map[string]any{}
		}
		for k, v := range patch.Metadata {
			c.Metadata[k] = v
		}
	}
	if patch.ClearExpiry {
		c.ExpiresAt = nil
	} else if patch.ExpiresAt != nil {
		exp := patch.ExpiresAt.UTC()
		c.ExpiresAt = &exp
	}
	return clone(c), nil
}

// ExtendTTL moves the expiry to max(now, current expiry) + minutes.
func (s *InMemoryContextStore) ExtendTTL(id string, minutes int) (*core.SharedContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contexts[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	now := time.Now().UTC()
	base := now
	if c.ExpiresAt != nil && c.ExpiresAt.After(now) {
		base = *c.ExpiresAt
	}
	exp := base.Add(time.Duration(minutes) * time.Minute)
	c.ExpiresAt = &exp
	if c.Metadata == nil {
		c.Metadata = map[string]any{}
	}
	history, _ := c.Metadata["ttl_extensions"].([]any)
	c.Metadata["ttl_extensions"] = append(history, map[string]any{
		"extended_at":    now.Format(time.RFC3339Nano),
		"minutes":        minutes,
		"new_expires_at": exp.Format(time.RFC3339Nano),
	})
	return clone(c), nil
}

// Delete removes the context. Returns core.ErrNotFound if absent.
func (s *InMemoryContextStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contexts[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.contexts, id)
	return nil
}

// ListBySession returns the session's contexts in creation order.
func (s *InMemoryContextStore) ListBySession(sessionID string, includeExpired bool) ([]*core.SharedContext, error) {
	return s.list(func(c *core.SharedContext) bool { return c.SessionID == sessionID }, includeExpired)
}

// ListByAgent returns contexts targeted at the agent, optionally narrowed by
// session and source agent.
func (s *InMemoryContextStore) ListByAgent(targetAgentID string, filter core.AgentContextFilter) ([]*core.SharedContext, error) {
	return s.list(func(c *core.SharedContext) bool {
		if c.TargetAgentID != targetAgentID {
			return false
		}
		if filter.SessionID != "" && c.SessionID != filter.SessionID {
			return false
		}
		if filter.SourceAgentID != "" && c.SourceAgentID != filter.SourceAgentID {
			return false
		}
		return true
	}, filter.IncludeExpired)
}

func (s *InMemoryContextStore) list(match func(*core.SharedContext) bool, includeExpired bool) ([]*core.SharedContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := time.Now().UTC()
	out := []*core.SharedContext{}
	for _, c := range s.contexts {
		if !match(c) {
			continue
		}
		if !includeExpired && c.Expired(now) {
			continue
		}
		out = append(out, clone(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// clone deep-copies maps so callers can mutate results safely.
func clone(c *core.SharedContext) *core.SharedContext {
	cp := *c
	if c.Content != nil {
		cp.Content = make(map[string]any, len(c.Content))
		for k, v := range c.Content {
			cp.Content[k] = v
		}
	}
	if c.Metadata != nil {
		cp.Metadata = make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			cp.Metadata[k] = v
		}
	}
	if c.ExpiresAt != nil {
		exp := *c.ExpiresAt
		cp.ExpiresAt = &exp
	}
	return &cp
}
