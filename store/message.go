package store

import (
	"bytes"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/chatmesh/chatstore/core"
)

// defaultListLimit bounds pages when callers pass a zero limit.
const defaultListLimit = 100

// MessageStore is the bbolt-backed core.MessageRepository. Messages are keyed
// directly by message id; the session and agent orderings live in the two
// index partitions and are written in the same transaction as the record.
type MessageStore struct {
	env *Env
}

// NewMessageStore constructs a message repository over the environment.
func NewMessageStore(env *Env) *MessageStore {
	return &MessageStore{env: env}
}

// Create validates the owning session inside the write transaction, assigns
// server fields when absent and writes the record plus both index entries
// atomically. Nothing is visible to readers if any step fails.
func (s *MessageStore) Create(msg *core.Message) (*core.Message, error) {
	if msg.SessionID == "" {
		return nil, &core.SessionNotFoundError{SessionID: ""}
	}
	m := *msg
	if m.MessageID == "" {
		m.MessageID = core.NewID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.Type == "" {
		m.Type = core.MessageTypeUser
	}
	if !m.Type.Valid() {
		return nil, fmt.Errorf("store: invalid message type %q", m.Type)
	}

	data, err := encodeMessage(&m)
	if err != nil {
		return nil, err
	}

	err = s.env.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketSessions).Get([]byte(m.SessionID)) == nil {
			return &core.SessionNotFoundError{SessionID: m.SessionID}
		}
		if err := tx.Bucket(bucketMessages).Put([]byte(m.MessageID), data); err != nil {
			return err
		}
		idVal := []byte(m.MessageID)
		if err := tx.Bucket(bucketMessageBySession).Put(indexKey(m.SessionID, m.CreatedAt, m.MessageID), idVal); err != nil {
			return err
		}
		if m.AgentID != "" {
			if err := tx.Bucket(bucketMessageByAgent).Put(indexKey(m.AgentID, m.CreatedAt, m.MessageID), idVal); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Get is an O(1) point lookup by message id.
func (s *MessageStore) Get(messageID string) (*core.Message, error) {
	var msg *core.Message
	err := s.env.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketMessages).Get([]byte(messageID))
		if data == nil {
			return core.ErrNotFound
		}
		var err error
		msg, err = decodeMessage(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ListBySession returns one page of the session's history. The page is
// assembled from the session index and resolved through the primary
// partition inside a single read snapshot.
func (s *MessageStore) ListBySession(sessionID string, opts core.ListOptions) (*core.MessagePage, error) {
	return s.listIndexed(bucketMessageBySession, sessionID, opts)
}

// ListByAgent returns one page of the agent's messages across sessions via
// the agent index.
func (s *MessageStore) ListByAgent(agentID string, opts core.ListOptions) (*core.MessagePage, error) {
	return s.listIndexed(bucketMessageByAgent, agentID, opts)
}

func (s *MessageStore) listIndexed(bucket []byte, partitionKey string, opts core.ListOptions) (*core.MessagePage, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	page := &core.MessagePage{Messages: []*core.Message{}}

	err := s.env.View(func(tx *bolt.Tx) error {
		idx := tx.Bucket(bucket)
		primary := tx.Bucket(bucketMessages)
		prefix := indexPrefix(partitionKey)

		res, err := scanIndex(idx, pageRequest{
			prefix:     prefix,
			skip:       opts.Skip,
			limit:      limit,
			cursor:     opts.Cursor,
			descending: opts.Direction == core.Descending,
		})
		if err != nil {
			return err
		}
		for _, id := range res.ids {
			data := primary.Get([]byte(id))
			if data == nil {
				// Index and primary are written together; a dangling entry
				// means on-disk damage somewhere upstream.
				return fmt.Errorf("store: index entry for missing message %s", id)
			}
			m, err := decodeMessage(data)
			if err != nil {
				return err
			}
			page.Messages = append(page.Messages, m)
		}
		page.Cursor = res.nextCursor
		if opts.IncludeTotal {
			page.Total = countPrefix(idx, prefix)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// Trim deletes the oldest messages past maxMessages, removing primary rows
// and both index entries in one transaction. Returns the number deleted.
func (s *MessageStore) Trim(sessionID string, maxMessages int) (int, error) {
	if maxMessages < 0 {
		maxMessages = 0
	}
	deleted := 0
	err := s.env.Update(func(tx *bolt.Tx) error {
		idx := tx.Bucket(bucketMessageBySession)
		prefix := indexPrefix(sessionID)

		// Collect affected keys first, then delete (cursor iteration and
		// mutation do not mix).
		type victim struct {
			indexKey []byte
			id       string
		}
		total := 0
		var victims []victim
		c := idx.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			total++
			victims = append(victims, victim{indexKey: append([]byte(nil), k...), id: string(v)})
		}
		over := total - maxMessages
		if over <= 0 {
			return nil
		}
		victims = victims[:over]

		primary := tx.Bucket(bucketMessages)
		agentIdx := tx.Bucket(bucketMessageByAgent)
		for _, vic := range victims {
			data := primary.Get([]byte(vic.id))
			if data != nil {
				m, err := decodeMessage(data)
				if err != nil {
					return err
				}
				if m.AgentID != "" {
					if err := agentIdx.Delete(indexKey(m.AgentID, m.CreatedAt, m.MessageID)); err != nil {
						return err
					}
				}
				if err := primary.Delete([]byte(vic.id)); err != nil {
					return err
				}
			}
			if err := idx.Delete(vic.indexKey); err != nil {
				return err
			}
		}
		deleted = over
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
