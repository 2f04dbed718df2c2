package store

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/chatmesh/chatstore/core"
)

// ContextStore is the bbolt-backed core.ContextRepository. Session-scoped
// contexts additionally maintain a (session, created_at) index entry written
// in the same transaction as the primary record.
type ContextStore struct {
	env *Env
	// now is swappable for TTL tests.
	now func() time.Time
}

// NewContextStore constructs a shared-context repository over the environment.
func NewContextStore(env *Env) *ContextStore {
	return &ContextStore{env: env, now: func() time.Time { return time.Now().UTC() }}
}

// Create stores the context and, when session-scoped, its index entry.
func (s *ContextStore) Create(sc *core.SharedContext) (*core.SharedContext, error) {
	c := *sc
	if c.ID == "" {
		c.ID = core.NewID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	if c.ContextType == "" {
		c.ContextType = core.ContextTypeRelevant
	}
	if !c.ContextType.Valid() {
		return nil, fmt.Errorf("store: invalid context type %q", c.ContextType)
	}

	data, err := encodeContext(&c)
	if err != nil {
		return nil, err
	}
	err = s.env.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketSharedContexts).Put([]byte(c.ID), data); err != nil {
			return err
		}
		if c.SessionID != "" {
			return tx.Bucket(bucketContextBySession).Put(indexKey(c.SessionID, c.CreatedAt, c.ID), []byte(c.ID))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Get returns the context regardless of expiry, or core.ErrNotFound.
func (s *ContextStore) Get(id string) (*core.SharedContext, error) {
	var sc *core.SharedContext
	err := s.env.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSharedContexts).Get([]byte(id))
		if data == nil {
			return core.ErrNotFound
		}
		var err error
		sc, err = decodeContext(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sc, nil
}

// Update merges the patch into the stored context. SessionID is immutable so
// the index entry never needs rewriting.
func (s *ContextStore) Update(id string, patch core.ContextPatch) (*core.SharedContext, error) {
	var sc *core.SharedContext
	err := s.env.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketSharedContexts)
		data := bkt.Get([]byte(id))
		if data == nil {
			return core.ErrNotFound
		}
		var err error
		sc, err = decodeContext(data)
		if err != nil {
			return err
		}
		if patch.ContextType != nil {
			if !patch.ContextType.Valid() {
				return fmt.Errorf("store: invalid context type %q", *patch.ContextType)
			}
			sc.ContextType = *patch.ContextType
		}
		if patch.Content != nil {
			sc.Content = patch.Content
		}
		if len(patch.Metadata) > 0 {
			if sc.Metadata == nil {
				sc.Metadata = map[string]any{}
			}
			for k, v := range patch.Metadata {
				sc.Metadata[k] = v
			}
		}
		if patch.ClearExpiry {
			sc.ExpiresAt = nil
		} else if patch.ExpiresAt != nil {
			exp := patch.ExpiresAt.UTC()
			sc.ExpiresAt = &exp
		}
		out, err := encodeContext(sc)
		if err != nil {
			return err
		}
		return bkt.Put([]byte(id), out)
	})
	if err != nil {
		return nil, err
	}
	return sc, nil
}

// ExtendTTL moves the expiry to max(now, current expiry) + minutes and
// appends the extension to the context's metadata history. Monotonic: the
// new expiry never precedes the previous one.
func (s *ContextStore) ExtendTTL(id string, minutes int) (*core.SharedContext, error) {
	var sc *core.SharedContext
	err := s.env.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketSharedContexts)
		data := bkt.Get([]byte(id))
		if data == nil {
			return core.ErrNotFound
		}
		var err error
		sc, err = decodeContext(data)
		if err != nil {
			return err
		}

		now := s.now()
		base := now
		if sc.ExpiresAt != nil && sc.ExpiresAt.After(now) {
			base = *sc.ExpiresAt
		}
		exp := base.Add(time.Duration(minutes) * time.Minute)
		sc.ExpiresAt = &exp

		if sc.Metadata == nil {
			sc.Metadata = map[string]any{}
		}
		history, _ := sc.Metadata["ttl_extensions"].([]any)
		history = append(history, map[string]any{
			"extended_at":    now.Format(time.RFC3339Nano),
			"minutes":        minutes,
			"new_expires_at": exp.Format(time.RFC3339Nano),
		})
		sc.Metadata["ttl_extensions"] = history

		out, err := encodeContext(sc)
		if err != nil {
			return err
		}
		return bkt.Put([]byte(id), out)
	})
	if err != nil {
		return nil, err
	}
	return sc, nil
}

// Delete removes the context and, when session-scoped, its index entry in one
// transaction. Returns core.ErrNotFound if the context does not exist.
func (s *ContextStore) Delete(id string) error {
	return s.env.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketSharedContexts)
		data := bkt.Get([]byte(id))
		if data == nil {
			return core.ErrNotFound
		}
		sc, err := decodeContext(data)
		if err != nil {
			return err
		}
		if err := bkt.Delete([]byte(id)); err != nil {
			return err
		}
		if sc.SessionID != "" {
			return tx.Bucket(bucketContextBySession).Delete(indexKey(sc.SessionID, sc.CreatedAt, sc.ID))
		}
		return nil
	})
}

// ListBySession returns the session's contexts in creation order via the
// session index, excluding expired rows unless requested.
func (s *ContextStore) ListBySession(sessionID string, includeExpired bool) ([]*core.SharedContext, error) {
	now := s.now()
	out := []*core.SharedContext{}
	err := s.env.View(func(tx *bolt.Tx) error {
		idx := tx.Bucket(bucketContextBySession)
		primary := tx.Bucket(bucketSharedContexts)
		prefix := indexPrefix(sessionID)
		c := idx.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			data := primary.Get(v)
			if data == nil {
				return fmt.Errorf("store: index entry for missing context %s", v)
			}
			sc, err := decodeContext(data)
			if err != nil {
				return err
			}
			if !includeExpired && sc.Expired(now) {
				continue
			}
			out = append(out, sc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListByAgent returns contexts targeted at the agent, optionally narrowed by
// session and source agent. There is no agent-keyed context index; this is a
// bounded scan over the primary partition.
func (s *ContextStore) ListByAgent(targetAgentID string, filter core.AgentContextFilter) ([]*core.SharedContext, error) {
	now := s.now()
	out := []*core.SharedContext{}
	err := s.env.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSharedContexts).ForEach(func(_, v []byte) error {
			sc, err := decodeContext(v)
			if err != nil {
				return err
			}
			if sc.TargetAgentID != targetAgentID {
				return nil
			}
			if filter.SessionID != "" && sc.SessionID != filter.SessionID {
				return nil
			}
			if filter.SourceAgentID != "" && sc.SourceAgentID != filter.SourceAgentID {
				return nil
			}
			if !filter.IncludeExpired && sc.Expired(now) {
				return nil
			}
			out = append(out, sc)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
