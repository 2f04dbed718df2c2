package store

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/chatmesh/chatstore/core"
)

// Records are stored as msgpack maps. Dedicated record structs keep the wire
// shape stable and independent of the core types, and give the polymorphic
// Part set a tagged envelope.

// timePtrUTC normalizes optional timestamps to UTC after decoding.
func timePtrUTC(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

const (
	partKindText = "text"
	partKindData = "data"
	partKindFile = "file"
)

type partRecord struct {
	Kind     string         `msgpack:"kind"`
	Text     string         `msgpack:"text,omitempty"`
	Data     map[string]any `msgpack:"data,omitempty"`
	File     *fileRecord    `msgpack:"file,omitempty"`
	Metadata map[string]any `msgpack:"metadata,omitempty"`
}

type fileRecord struct {
	Name     string `msgpack:"name,omitempty"`
	MimeType string `msgpack:"mime_type,omitempty"`
	Bytes    string `msgpack:"bytes,omitempty"`
	URI      string `msgpack:"uri,omitempty"`
}

type sessionRecord struct {
	ID          string         `msgpack:"id"`
	Title       string         `msgpack:"title,omitempty"`
	SessionType string         `msgpack:"session_type,omitempty"`
	Metadata    map[string]any `msgpack:"metadata,omitempty"`
	CreatedAt   time.Time      `msgpack:"created_at"`
	UpdatedAt   time.Time      `msgpack:"updated_at"`
}

type messageRecord struct {
	MessageID string         `msgpack:"message_id"`
	SessionID string         `msgpack:"session_id"`
	Type      string         `msgpack:"type"`
	AgentID   string         `msgpack:"agent_id,omitempty"`
	Parts     []partRecord   `msgpack:"parts"`
	Metadata  map[string]any `msgpack:"metadata,omitempty"`
	CreatedAt time.Time      `msgpack:"created_at"`
	UpdatedAt *time.Time     `msgpack:"updated_at,omitempty"`
	InReplyTo string         `msgpack:"in_reply_to,omitempty"`
}

type contextRecord struct {
	ID            string         `msgpack:"id"`
	SessionID     string         `msgpack:"session_id,omitempty"`
	SourceAgentID string         `msgpack:"source_agent_id"`
	TargetAgentID string         `msgpack:"target_agent_id"`
	ContextType   string         `msgpack:"context_type"`
	Content       map[string]any `msgpack:"content,omitempty"`
	Metadata      map[string]any `msgpack:"metadata,omitempty"`
	CreatedAt     time.Time      `msgpack:"created_at"`
	ExpiresAt     *time.Time     `msgpack:"expires_at,omitempty"`
}

type taskRecord struct {
	ID          string         `msgpack:"id"`
	SessionID   string         `msgpack:"session_id"`
	Title       string         `msgpack:"title"`
	Description string         `msgpack:"description,omitempty"`
	Status      string         `msgpack:"status"`
	Priority    int            `msgpack:"priority"`
	CreatedAt   time.Time      `msgpack:"created_at"`
	StartedAt   *time.Time     `msgpack:"started_at,omitempty"`
	CompletedAt *time.Time     `msgpack:"completed_at,omitempty"`
	Config      map[string]any `msgpack:"config,omitempty"`
	Context     map[string]any `msgpack:"context,omitempty"`
	Result      map[string]any `msgpack:"result,omitempty"`
}

func encodeParts(parts []core.Part) ([]partRecord, error) {
	recs := make([]partRecord, 0, len(parts))
	for _, p := range parts {
		switch v := p.(type) {
		case core.TextPart:
			recs = append(recs, partRecord{Kind: partKindText, Text: v.Text, Metadata: v.Metadata})
		case core.DataPart:
			recs = append(recs, partRecord{Kind: partKindData, Data: v.Data, Metadata: v.Metadata})
		case core.FilePart:
			recs = append(recs, partRecord{
				Kind:     partKindFile,
				File:     &fileRecord{Name: v.File.Name, MimeType: v.File.MimeType, Bytes: v.File.Bytes, URI: v.File.URI},
				Metadata: v.Metadata,
			})
		default:
			return nil, fmt.Errorf("store: unsupported part type %T", p)
		}
	}
	return recs, nil
}

func decodeParts(recs []partRecord) ([]core.Part, error) {
	parts := make([]core.Part, 0, len(recs))
	for _, r := range recs {
		switch r.Kind {
		case partKindText:
			parts = append(parts, core.TextPart{Text: r.Text, Metadata: r.Metadata})
		case partKindData:
			parts = append(parts, core.DataPart{Data: r.Data, Metadata: r.Metadata})
		case partKindFile:
			f := core.FileRef{}
			if r.File != nil {
				f = core.FileRef{Name: r.File.Name, MimeType: r.File.MimeType, Bytes: r.File.Bytes, URI: r.File.URI}
			}
			parts = append(parts, core.FilePart{File: f, Metadata: r.Metadata})
		default:
			return nil, fmt.Errorf("store: unknown part kind %q", r.Kind)
		}
	}
	return parts, nil
}

func encodeSession(s *core.Session) ([]byte, error) {
	return msgpack.Marshal(sessionRecord{
		ID: s.ID, Title: s.Title, SessionType: s.SessionType,
		Metadata: s.Metadata, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt,
	})
}

func decodeSession(data []byte) (*core.Session, error) {
	var r sessionRecord
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("store: decode session: %w", err)
	}
	return &core.Session{
		ID: r.ID, Title: r.Title, SessionType: r.SessionType,
		Metadata: r.Metadata, CreatedAt: r.CreatedAt.UTC(), UpdatedAt: r.UpdatedAt.UTC(),
	}, nil
}

func encodeMessage(m *core.Message) ([]byte, error) {
	parts, err := encodeParts(m.Parts)
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(messageRecord{
		MessageID: m.MessageID, SessionID: m.SessionID, Type: string(m.Type),
		AgentID: m.AgentID, Parts: parts, Metadata: m.Metadata,
		CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt, InReplyTo: m.InReplyTo,
	})
}

func decodeMessage(data []byte) (*core.Message, error) {
	var r messageRecord
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("store: decode message: %w", err)
	}
	parts, err := decodeParts(r.Parts)
	if err != nil {
		return nil, err
	}
	return &core.Message{
		MessageID: r.MessageID, SessionID: r.SessionID, Type: core.MessageType(r.Type),
		AgentID: r.AgentID, Parts: parts, Metadata: r.Metadata,
		CreatedAt: r.CreatedAt.UTC(), UpdatedAt: timePtrUTC(r.UpdatedAt), InReplyTo: r.InReplyTo,
	}, nil
}

func encodeContext(c *core.SharedContext) ([]byte, error) {
	return msgpack.Marshal(contextRecord{
		ID: c.ID, SessionID: c.SessionID,
		SourceAgentID: c.SourceAgentID, TargetAgentID: c.TargetAgentID,
		ContextType: string(c.ContextType), Content: c.Content, Metadata: c.Metadata,
		CreatedAt: c.CreatedAt, ExpiresAt: c.ExpiresAt,
	})
}

func decodeContext(data []byte) (*core.SharedContext, error) {
	var r contextRecord
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("store: decode context: %w", err)
	}
	return &core.SharedContext{
		ID: r.ID, SessionID: r.SessionID,
		SourceAgentID: r.SourceAgentID, TargetAgentID: r.TargetAgentID,
		ContextType: core.ContextType(r.ContextType), Content: r.Content, Metadata: r.Metadata,
		CreatedAt: r.CreatedAt.UTC(), ExpiresAt: timePtrUTC(r.ExpiresAt),
	}, nil
}

func encodeTask(t *core.Task) ([]byte, error) {
	return msgpack.Marshal(taskRecord{
		ID: t.ID, SessionID: t.SessionID, Title: t.Title, Description: t.Description,
		Status: string(t.Status), Priority: t.Priority,
		CreatedAt: t.CreatedAt, StartedAt: t.StartedAt, CompletedAt: t.CompletedAt,
		Config: t.Config, Context: t.Context, Result: t.Result,
	})
}

func decodeTask(data []byte) (*core.Task, error) {
	var r taskRecord
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("store: decode task: %w", err)
	}
	return &core.Task{
		ID: r.ID, SessionID: r.SessionID, Title: r.Title, Description: r.Description,
		Status: core.TaskStatus(r.Status), Priority: r.Priority,
		CreatedAt: r.CreatedAt.UTC(), StartedAt: timePtrUTC(r.StartedAt), CompletedAt: timePtrUTC(r.CompletedAt),
		Config: r.Config, Context: r.Context, Result: r.Result,
	}, nil
}
