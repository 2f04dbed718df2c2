package store

import (
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/chatmesh/chatstore/core"
	"github.com/chatmesh/chatstore/logging"
)

// Retention trims message history and purges expired shared contexts. Both
// sweeps are invoked by an external scheduler; each unit of work runs in its
// own short write transaction so the single writer is never held long.
type Retention struct {
	env      *Env
	messages *MessageStore
	logger   logging.Logger
}

// NewRetention constructs a retention manager over the environment.
func NewRetention(env *Env, messages *MessageStore, logger logging.Logger) *Retention {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Retention{env: env, messages: messages, logger: logger}
}

// SweepMessages trims every session's history down to maxPerSession and
// returns the total number of messages deleted. One transaction per session.
func (r *Retention) SweepMessages(maxPerSession int) (int, error) {
	var sessionIDs []string
	err := r.env.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSessions).ForEach(func(k, _ []byte) error {
			sessionIDs = append(sessionIDs, string(k))
			return nil
		})
	})
	if err != nil {
		return 0, err
	}

	total := 0
	for _, id := range sessionIDs {
		n, err := r.messages.Trim(id, maxPerSession)
		if err != nil {
			return total, err
		}
		total += n
	}
	if total > 0 {
		r.logger.Info("message retention sweep finished", "sessions", len(sessionIDs), "deleted", total)
	}
	return total, nil
}

// SweepExpiredContexts deletes every shared context whose expiry has passed,
// in batches of at most batchSize per write transaction, and returns the
// total deleted.
func (r *Retention) SweepExpiredContexts(batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	total := 0
	for {
		// Collect one batch under a read snapshot, delete under a write
		// transaction, repeat until a scan comes back short.
		type expired struct {
			id        string
			sessionID string
			createdAt time.Time
		}
		now := time.Now().UTC()
		var batch []expired
		err := r.env.View(func(tx *bolt.Tx) error {
			c := tx.Bucket(bucketSharedContexts).Cursor()
			for k, v := c.First(); k != nil && len(batch) < batchSize; k, v = c.Next() {
				sc, err := decodeContext(v)
				if err != nil {
					return err
				}
				if sc.Expired(now) {
					batch = append(batch, expired{id: sc.ID, sessionID: sc.SessionID, createdAt: sc.CreatedAt})
				}
			}
			return nil
		})
		if err != nil {
			return total, err
		}
		if len(batch) == 0 {
			break
		}

		err = r.env.Update(func(tx *bolt.Tx) error {
			primary := tx.Bucket(bucketSharedContexts)
			idx := tx.Bucket(bucketContextBySession)
			for _, e := range batch {
				if err := primary.Delete([]byte(e.id)); err != nil {
					return err
				}
				if e.sessionID != "" {
					if err := idx.Delete(indexKey(e.sessionID, e.createdAt, e.id)); err != nil {
						return err
					}
				}
			}
			return nil
		})
		if err != nil {
			return total, err
		}
		total += len(batch)
		if len(batch) < batchSize {
			break
		}
	}
	if total > 0 {
		r.logger.Info("context TTL sweep finished", "deleted", total)
	}
	return total, nil
}

// compile-time interface assertions for the bbolt repositories.
var (
	_ core.SessionRepository = (*SessionStore)(nil)
	_ core.MessageRepository = (*MessageStore)(nil)
	_ core.ContextRepository = (*ContextStore)(nil)
	_ core.TaskRepository    = (*TaskStore)(nil)
)
