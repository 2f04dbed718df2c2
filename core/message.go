package core

import "time"

// MessageType classifies the author role of a message.
type MessageType string

const (
	// MessageTypeUser is a message authored by a human client.
	MessageTypeUser MessageType = "user"
	// MessageTypeAgent is a message authored by a conversational agent.
	MessageTypeAgent MessageType = "agent"
	// MessageTypeSystem is a platform-generated control message.
	MessageTypeSystem MessageType = "system"
	// MessageTypeError records a failure surfaced into the conversation.
	MessageTypeError MessageType = "error"
)

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeUser, MessageTypeAgent, MessageTypeSystem, MessageTypeError:
		return true
	}
	return false
}

// Message is an immutable conversational record owned by exactly one session.
// After creation the only permitted mutation is hard deletion via trimming or
// the owning session's cascade. Content is an ordered list of typed parts.
type Message struct {
	MessageID string         `json:"message_id"`
	SessionID string         `json:"session_id"`
	Type      MessageType    `json:"type"`
	AgentID   string         `json:"agent_id,omitempty"`
	Parts     []Part         `json:"parts"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt *time.Time     `json:"updated_at,omitempty"`
	InReplyTo string         `json:"in_reply_to,omitempty"`
}

// NewTextMessage is a convenience constructor for a single-text-part message.
func NewTextMessage(sessionID string, mt MessageType, text string) *Message {
	return &Message{
		SessionID: sessionID,
		Type:      mt,
		Parts:     []Part{TextPart{Text: text}},
	}
}

// Direction selects the iteration order of a message listing.
type Direction string

const (
	// Ascending iterates in chronological order (oldest first).
	Ascending Direction = "asc"
	// Descending iterates in reverse-chronological order (newest first).
	Descending Direction = "desc"
)

// ListOptions configures a paginated message listing. Cursor is an opaque
// continuation token taken from a previous page; Skip applies after cursor
// positioning. A zero Limit falls back to the backend default.
type ListOptions struct {
	Skip         int
	Limit        int
	Cursor       string
	Direction    Direction
	IncludeTotal bool
}

// MessagePage is one page of a session's message history. Cursor is empty
// once the listing is exhausted. Total is populated only when requested.
type MessagePage struct {
	Messages []*Message
	Cursor   string
	Total    int
}

// MessageRepository persists messages keyed directly by message id, with
// session and agent orderings maintained as secondary indexes in the same
// transaction as every primary write.
type MessageRepository interface {
	// Create validates the owning session, assigns id/timestamp when absent
	// and writes the record plus its index entries atomically. Returns a
	// *SessionNotFoundError when the session does not exist.
	Create(msg *Message) (*Message, error)
	// Get is a point lookup by message id. Returns ErrNotFound if absent.
	Get(messageID string) (*Message, error)
	// ListBySession returns one page of the session's history in the
	// requested direction.
	ListBySession(sessionID string, opts ListOptions) (*MessagePage, error)
	// ListByAgent returns one page of the messages authored by the agent,
	// across sessions, in the requested direction.
	ListByAgent(agentID string, opts ListOptions) (*MessagePage, error)
	// Trim deletes the oldest messages past maxMessages and reports how many
	// were removed.
	Trim(sessionID string, maxMessages int) (int, error)
}
