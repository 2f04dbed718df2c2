package core

// Part represents a polymorphic segment of message content. Concrete part
// types implement the unexported isPart marker enabling a closed set.
type Part interface{ isPart() }

// TextPart is a plain text content segment.
type TextPart struct {
	Text     string         // Plain UTF-8 text
	Metadata map[string]any // Optional producer-provided metadata
}

// isPart implements the Part interface for TextPart.
func (TextPart) isPart() {}

// DataPart is a structured data segment (e.g., JSON object map).
type DataPart struct {
	Data     map[string]any // Structured key/value payload
	Metadata map[string]any
}

// isPart implements the Part interface for DataPart.
func (DataPart) isPart() {}

// FilePart is a file attachment segment.
type FilePart struct {
	File     FileRef // File metadata / reference
	Metadata map[string]any
}

// isPart implements the Part interface for FilePart.
func (FilePart) isPart() {}

// FileRef describes an attached file, either inlined as base64 bytes or
// referenced by an external URI.
type FileRef struct {
	Name     string `json:"name,omitempty"`      // Original filename hint
	MimeType string `json:"mime_type,omitempty"` // Optional MIME type
	Bytes    string `json:"bytes,omitempty"`     // Base64 encoded contents (if inlined)
	URI      string `json:"uri,omitempty"`       // External retrieval URI (if not inlined)
}
