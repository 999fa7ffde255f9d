// internal/types/models.go
package types

import (
	"fmt"
	"time"
)

// DocumentType is the capability variant a stream is served for. Each type
// maps to its own tool set and system instruction; there is no subtyping
// between them.
type DocumentType string

const (
	DocTypePDF         DocumentType = "pdf"
	DocTypeSpreadsheet DocumentType = "spreadsheet"
	DocTypeDocument    DocumentType = "document"
)

// Valid reports whether t is one of the known document types.
func (t DocumentType) Valid() bool {
	switch t {
	case DocTypePDF, DocTypeSpreadsheet, DocTypeDocument:
		return true
	}
	return false
}

// ParseDocumentType converts a string into a DocumentType, rejecting
// anything outside the closed set.
func ParseDocumentType(s string) (DocumentType, error) {
	t := DocumentType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown document type %q", s)
	}
	return t, nil
}

// Page is one unit of paginated document content.
type Page struct {
	Number    int    `json:"number"`
	Text      string `json:"text"`
	WordCount int    `json:"word_count"`
}

// ContextFragment is the caller-supplied portion of an agent context. All
// fields are optional; the resolver fills in what the fragment leaves out.
type ContextFragment struct {
	UserID        string `json:"user_id,omitempty"`
	DocumentID    string `json:"document_id,omitempty"`
	SourcePath    string `json:"source_path,omitempty"`
	SelectedRange string `json:"selected_range,omitempty"`
	SelectedText  string `json:"selected_text,omitempty"`
	CurrentPage   int    `json:"current_page,omitempty"`
	Pages         []Page `json:"pages,omitempty"`
}

// AgentContext is the resolved per-call value object handed to tool
// construction and the system prompt. It is built fresh for every stream;
// after the model call begins only resolved PDF pages may be appended.
type AgentContext struct {
	UserID        string
	SessionID     SessionID
	DocumentType  DocumentType
	DocumentID    string
	SourcePath    string
	SelectedRange string
	SelectedText  string
	CurrentPage   int
	Pages         []Page
	ResolvedAt    time.Time
}

// PageCount returns the number of resolved pages.
func (c *AgentContext) PageCount() int {
	return len(c.Pages)
}

// TotalWords sums word counts across resolved pages.
func (c *AgentContext) TotalWords() int {
	total := 0
	for _, p := range c.Pages {
		total += p.WordCount
	}
	return total
}

// ChatMessage is one entry of the prior-conversation history supplied by the
// caller when starting a stream.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Image is an inline image attachment for vision-capable models.
type Image struct {
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"`
}
