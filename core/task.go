package core

import "time"

// TaskStatus tracks a cooperative task through its lifecycle.
type TaskStatus string

const (
	// TaskStatusPending is the initial state of a created task.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusInProgress marks a task an agent has started working on.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusCompleted marks successful completion.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed marks unsuccessful termination.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusCancelled marks caller-initiated termination.
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether s ends the task lifecycle.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

// Task is a cooperative work item within a session, linked to the agents
// responsible for it via the task-agent link partition.
type Task struct {
	ID          string         `json:"id"`
	SessionID   string         `json:"session_id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Status      TaskStatus     `json:"status"`
	Priority    int            `json:"priority"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Config      map[string]any `json:"config,omitempty"`
	Context     map[string]any `json:"context,omitempty"`
	Result      map[string]any `json:"result,omitempty"`
	AgentIDs    []string       `json:"agent_ids,omitempty"`
}

// AgentResolver answers whether an agent id is known to the platform's agent
// registry. The registry itself lives in the execution runtime; this core
// only consults it for referential checks at task creation.
type AgentResolver interface {
	AgentExists(agentID string) (bool, error)
}

// TaskRepository persists tasks and their many-to-many agent links.
type TaskRepository interface {
	// Create stores the task and one link per agent after verifying every
	// agent id through the resolver. Returns an *AgentNotFoundError listing
	// the unresolved ids when verification fails.
	Create(task *Task, agentIDs []string) (*Task, error)
	// Get returns the task with its linked agent ids, or ErrNotFound.
	Get(id string) (*Task, error)
	// UpdateStatus transitions the task, stamping StartedAt on the first
	// entry into in_progress and CompletedAt on any terminal transition.
	// A non-nil result replaces the stored result payload.
	UpdateStatus(id string, status TaskStatus, result map[string]any) (*Task, error)
	// ListByAgent returns the agent's tasks, optionally filtered by status.
	ListByAgent(agentID string, status *TaskStatus) ([]*Task, error)
	// ListBySession returns the session's tasks; terminal tasks are excluded
	// unless includeCompleted is set.
	ListBySession(sessionID string, includeCompleted bool) ([]*Task, error)
}
