package core

import "testing"

func TestNewSession(t *testing.T) {
	s := NewSession("s1", "support thread")
	if s.ID != "s1" || s.Title != "support thread" {
		t.Fatalf("unexpected session: %+v", s)
	}
	if s.CreatedAt.IsZero() || s.UpdatedAt.IsZero() {
		t.Error("timestamps should be stamped")
	}
	if s.CreatedAt.Location().String() != "UTC" {
		t.Error("timestamps should be UTC")
	}
	if s.Metadata == nil {
		t.Error("metadata map should be initialized")
	}
}
