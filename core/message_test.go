package core

import "testing"

func TestMessageType_Valid(t *testing.T) {
	for _, mt := range []MessageType{MessageTypeUser, MessageTypeAgent, MessageTypeSystem, MessageTypeError} {
		if !mt.Valid() {
			t.Errorf("%q should be valid", mt)
		}
	}
	if MessageType("assistant").Valid() {
		t.Error("unknown message type should be invalid")
	}
}

func TestNewTextMessage(t *testing.T) {
	msg := NewTextMessage("s1", MessageTypeUser, "hello")
	if msg.SessionID != "s1" || msg.Type != MessageTypeUser {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if len(msg.Parts) != 1 {
		t.Fatalf("expected one part, got %d", len(msg.Parts))
	}
	tp, ok := msg.Parts[0].(TextPart)
	if !ok {
		t.Fatalf("expected TextPart, got %T", msg.Parts[0])
	}
	if tp.Text != "hello" {
		t.Errorf("expected text %q, got %q", "hello", tp.Text)
	}
}

func TestPart_ClosedSet(t *testing.T) {
	parts := []Part{
		TextPart{Text: "t"},
		DataPart{Data: map[string]any{"k": "v"}},
		FilePart{File: FileRef{Name: "a.txt", URI: "file:///a.txt"}},
	}
	if len(parts) != 3 {
		t.Fatal("all concrete part types should satisfy Part")
	}
}
