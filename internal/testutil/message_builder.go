package testutil

import (
	"time"

	"github.com/chatmesh/chatstore/core"
)

// MessageBuilder helps construct messages with fluent chaining for tests.
// Example:
//
//	msg := NewMessageBuilder("sess-1").Agent("planner").Text("hello").CreatedAt(ts).Build()
type MessageBuilder struct {
	msg core.Message
}

// NewMessageBuilder creates a builder for a message owned by the session.
func NewMessageBuilder(sessionID string) *MessageBuilder {
	return &MessageBuilder{msg: core.Message{SessionID: sessionID, Type: core.MessageTypeUser}}
}

// ID sets an explicit message id (chainable).
func (b *MessageBuilder) ID(id string) *MessageBuilder {
	b.msg.MessageID = id
	return b
}

// Type sets the message type (chainable).
func (b *MessageBuilder) Type(t core.MessageType) *MessageBuilder {
	b.msg.Type = t
	return b
}

// Agent marks the message agent-authored by the given agent id (chainable).
func (b *MessageBuilder) Agent(agentID string) *MessageBuilder {
	b.msg.AgentID = agentID
	b.msg.Type = core.MessageTypeAgent
	return b
}

// Text appends a text part (chainable).
func (b *MessageBuilder) Text(text string) *MessageBuilder {
	b.msg.Parts = append(b.msg.Parts, core.TextPart{Text: text})
	return b
}

// Data appends a structured data part (chainable).
func (b *MessageBuilder) Data(data map[string]any) *MessageBuilder {
	b.msg.Parts = append(b.msg.Parts, core.DataPart{Data: data})
	return b
}

// CreatedAt pins the creation timestamp (chainable).
func (b *MessageBuilder) CreatedAt(ts time.Time) *MessageBuilder {
	b.msg.CreatedAt = ts
	return b
}

// InReplyTo links the message to a parent message id (chainable).
func (b *MessageBuilder) InReplyTo(id string) *MessageBuilder {
	b.msg.InReplyTo = id
	return b
}

// Metadata sets a metadata key/value pair (chainable).
func (b *MessageBuilder) Metadata(key string, val any) *MessageBuilder {
	if b.msg.Metadata == nil {
		b.msg.Metadata = map[string]any{}
	}
	b.msg.Metadata[key] = val
	return b
}

// Build returns a *core.Message with the accumulated fields.
func (b *MessageBuilder) Build() *core.Message {
	m := b.msg
	return &m
}
