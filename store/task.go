package store

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/chatmesh/chatstore/core"
)

// Link direction prefixes inside the task_agents partition. Both orderings of
// the many-to-many link live in the single partition so either side resolves
// with one prefix scan.
const (
	linkByTask  = 't' // t:taskID:agentID -> agentID
	linkByAgent = 'a' // a:agentID:taskID -> taskID
)

// TaskStore is the bbolt-backed core.TaskRepository. Agent ids are verified
// through the injected resolver before any write; a nil resolver skips
// verification (embeddings without an agent registry).
type TaskStore struct {
	env      *Env
	resolver core.AgentResolver
}

// NewTaskStore constructs a task repository over the environment.
func NewTaskStore(env *Env, resolver core.AgentResolver) *TaskStore {
	return &TaskStore{env: env, resolver: resolver}
}

// Create verifies every referenced agent, then writes the task row and one
// link per agent (both orderings) in a single transaction.
func (s *TaskStore) Create(task *core.Task, agentIDs []string) (*core.Task, error) {
	t := *task
	if t.ID == "" {
		t.ID = core.NewID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Status == "" {
		t.Status = core.TaskStatusPending
	}
	if !t.Status.Valid() {
		return nil, fmt.Errorf("store: invalid task status %q", t.Status)
	}
	t.AgentIDs = append([]string(nil), agentIDs...)

	// Resolver checks may reach the runtime's registry; keep them outside
	// the write transaction so the single writer is never held across them.
	if s.resolver != nil {
		var missing []string
		for _, id := range agentIDs {
			ok, err := s.resolver.AgentExists(id)
			if err != nil {
				return nil, fmt.Errorf("store: verify agent %s: %w", id, err)
			}
			if !ok {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			return nil, &core.AgentNotFoundError{AgentIDs: missing}
		}
	}

	data, err := encodeTask(&t)
	if err != nil {
		return nil, err
	}
	err = s.env.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketTasks).Put([]byte(t.ID), data); err != nil {
			return err
		}
		links := tx.Bucket(bucketTaskAgents)
		for _, agentID := range agentIDs {
			if err := links.Put(linkKey(linkByTask, t.ID, agentID), []byte(agentID)); err != nil {
				return err
			}
			if err := links.Put(linkKey(linkByAgent, agentID, t.ID), []byte(t.ID)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Get returns the task with its linked agent ids, or core.ErrNotFound.
func (s *TaskStore) Get(id string) (*core.Task, error) {
	var task *core.Task
	err := s.env.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketTasks).Get([]byte(id))
		if data == nil {
			return core.ErrNotFound
		}
		var err error
		task, err = decodeTask(data)
		if err != nil {
			return err
		}
		task.AgentIDs = linkedIDs(tx.Bucket(bucketTaskAgents), linkPrefix(linkByTask, id))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// UpdateStatus transitions the task. StartedAt is stamped once on the first
// entry into in_progress; CompletedAt on any transition into a terminal
// status. A non-nil result replaces the stored result payload.
func (s *TaskStore) UpdateStatus(id string, status core.TaskStatus, result map[string]any) (*core.Task, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("store: invalid task status %q", status)
	}
	var task *core.Task
	err := s.env.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketTasks)
		data := bkt.Get([]byte(id))
		if data == nil {
			return core.ErrNotFound
		}
		var err error
		task, err = decodeTask(data)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if status == core.TaskStatusInProgress && task.StartedAt == nil {
			task.StartedAt = &now
		}
		if status.Terminal() && task.CompletedAt == nil {
			task.CompletedAt = &now
		}
		task.Status = status
		if result != nil {
			task.Result = result
		}

		out, err := encodeTask(task)
		if err != nil {
			return err
		}
		if err := bkt.Put([]byte(id), out); err != nil {
			return err
		}
		task.AgentIDs = linkedIDs(tx.Bucket(bucketTaskAgents), linkPrefix(linkByTask, id))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// ListByAgent returns the agent's tasks via the reverse link prefix,
// optionally filtered by status, in creation order.
func (s *TaskStore) ListByAgent(agentID string, status *core.TaskStatus) ([]*core.Task, error) {
	out := []*core.Task{}
	err := s.env.View(func(tx *bolt.Tx) error {
		tasks := tx.Bucket(bucketTasks)
		links := tx.Bucket(bucketTaskAgents)
		for _, taskID := range linkedIDs(links, linkPrefix(linkByAgent, agentID)) {
			data := tasks.Get([]byte(taskID))
			if data == nil {
				return fmt.Errorf("store: link entry for missing task %s", taskID)
			}
			t, err := decodeTask(data)
			if err != nil {
				return err
			}
			if status != nil && t.Status != *status {
				continue
			}
			t.AgentIDs = linkedIDs(links, linkPrefix(linkByTask, taskID))
			out = append(out, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ListBySession returns the session's tasks in creation order. Terminal
// tasks are excluded unless includeCompleted is set. Bounded scan over the
// primary partition; tasks have no session index.
func (s *TaskStore) ListBySession(sessionID string, includeCompleted bool) ([]*core.Task, error) {
	out := []*core.Task{}
	err := s.env.View(func(tx *bolt.Tx) error {
		links := tx.Bucket(bucketTaskAgents)
		return tx.Bucket(bucketTasks).ForEach(func(_, v []byte) error {
			t, err := decodeTask(v)
			if err != nil {
				return err
			}
			if t.SessionID != sessionID {
				return nil
			}
			if !includeCompleted && t.Status.Terminal() {
				return nil
			}
			t.AgentIDs = linkedIDs(links, linkPrefix(linkByTask, t.ID))
			out = append(out, t)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// linkedIDs collects the values under a link prefix.
func linkedIDs(links *bolt.Bucket, prefix []byte) []string {
	var ids []string
	c := links.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		ids = append(ids, string(v))
	}
	return ids
}
