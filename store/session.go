package store

import (
	"bytes"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/chatmesh/chatstore/core"
)

// SessionStore is the bbolt-backed core.SessionRepository. It owns the
// cascading delete across the message and context partitions.
type SessionStore struct {
	env *Env
}

// NewSessionStore constructs a session repository over the environment.
func NewSessionStore(env *Env) *SessionStore {
	return &SessionStore{env: env}
}

// Create stores the session, assigning id and timestamps when absent.
// Creating an existing id is idempotent and returns the stored session.
func (s *SessionStore) Create(session *core.Session) (*core.Session, error) {
	sess := *session
	if sess.ID == "" {
		sess.ID = core.NewID()
	}
	now := time.Now().UTC()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	if sess.UpdatedAt.IsZero() {
		sess.UpdatedAt = sess.CreatedAt
	}

	var stored *core.Session
	err := s.env.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketSessions)
		if data := bkt.Get([]byte(sess.ID)); data != nil {
			var err error
			stored, err = decodeSession(data)
			return err
		}
		data, err := encodeSession(&sess)
		if err != nil {
			return err
		}
		return bkt.Put([]byte(sess.ID), data)
	})
	if err != nil {
		return nil, err
	}
	if stored != nil {
		return stored, nil
	}
	return &sess, nil
}

// Get returns the session or core.ErrNotFound.
func (s *SessionStore) Get(id string) (*core.Session, error) {
	var sess *core.Session
	err := s.env.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSessions).Get([]byte(id))
		if data == nil {
			return core.ErrNotFound
		}
		var err error
		sess, err = decodeSession(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// List returns sessions ordered by creation time descending. The primary
// partition is keyed by id, so ordering is a scan-and-sort; bounded by the
// session count, not message volume.
func (s *SessionStore) List(skip, limit int) ([]*core.Session, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	var all []*core.Session
	err := s.env.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSessions).ForEach(func(_, v []byte) error {
			sess, err := decodeSession(v)
			if err != nil {
				return err
			}
			all = append(all, sess)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if skip >= len(all) {
		return []*core.Session{}, nil
	}
	all = all[skip:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// Update merges the patch into the stored session and stamps UpdatedAt.
func (s *SessionStore) Update(id string, patch core.SessionPatch) (*core.Session, error) {
	var sess *core.Session
	err := s.env.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketSessions)
		data := bkt.Get([]byte(id))
		if data == nil {
			return core.ErrNotFound
		}
		var err error
		sess, err = decodeSession(data)
		if err != nil {
			return err
		}
		if patch.Title != nil {
			sess.Title = *patch.Title
		}
		if patch.SessionType != nil {
			sess.SessionType = *patch.SessionType
		}
		if len(patch.Metadata) > 0 {
			if sess.Metadata == nil {
				sess.Metadata = map[string]any{}
			}
			for k, v := range patch.Metadata {
				sess.Metadata[k] = v
			}
		}
		sess.UpdatedAt = time.Now().UTC()
		out, err := encodeSession(sess)
		if err != nil {
			return err
		}
		return bkt.Put([]byte(id), out)
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Delete removes the session and everything it owns: every message (primary
// row plus both indexes) and every session-scoped shared context (primary row
// plus index), then the session row itself, all inside one transaction so the
// cascade is all-or-nothing.
func (s *SessionStore) Delete(id string) error {
	return s.env.Update(func(tx *bolt.Tx) error {
		sessions := tx.Bucket(bucketSessions)
		if sessions.Get([]byte(id)) == nil {
			return core.ErrNotFound
		}

		// Collect affected keys via the indexes first, then delete.
		prefix := indexPrefix(id)

		msgIdx := tx.Bucket(bucketMessageBySession)
		var msgIndexKeys [][]byte
		var msgIDs []string
		c := msgIdx.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			msgIndexKeys = append(msgIndexKeys, append([]byte(nil), k...))
			msgIDs = append(msgIDs, string(v))
		}

		ctxIdx := tx.Bucket(bucketContextBySession)
		var ctxIndexKeys [][]byte
		var ctxIDs []string
		c = ctxIdx.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			ctxIndexKeys = append(ctxIndexKeys, append([]byte(nil), k...))
			ctxIDs = append(ctxIDs, string(v))
		}

		messages := tx.Bucket(bucketMessages)
		agentIdx := tx.Bucket(bucketMessageByAgent)
		for _, mid := range msgIDs {
			data := messages.Get([]byte(mid))
			if data == nil {
				continue
			}
			m, err := decodeMessage(data)
			if err != nil {
				return err
			}
			if m.AgentID != "" {
				if err := agentIdx.Delete(indexKey(m.AgentID, m.CreatedAt, m.MessageID)); err != nil {
					return err
				}
			}
			if err := messages.Delete([]byte(mid)); err != nil {
				return err
			}
		}
		for _, k := range msgIndexKeys {
			if err := msgIdx.Delete(k); err != nil {
				return err
			}
		}

		contexts := tx.Bucket(bucketSharedContexts)
		for _, cid := range ctxIDs {
			if err := contexts.Delete([]byte(cid)); err != nil {
				return err
			}
		}
		for _, k := range ctxIndexKeys {
			if err := ctxIdx.Delete(k); err != nil {
				return err
			}
		}

		return sessions.Delete([]byte(id))
	})
}
