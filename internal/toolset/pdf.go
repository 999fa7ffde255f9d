// internal/toolset/pdf.go
package toolset

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/user/docpilot/internal/types"
)

const pdfSystemPrompt = `You are a reading assistant for a PDF document. ` +
	`The user is viewing page %d of %d. ` +
	`Answer questions strictly from the document content. ` +
	`Every fact you extract MUST be annotated with its originating page number, like "(p. 12)". ` +
	`If you state anything that is not grounded in the document, you MUST explicitly flag it as not found in the document. ` +
	`Use search_document to locate passages and goto_page to bring a page into the user's view.`

func buildPDF(r *Registry, ac *types.AgentContext) (string, []Tool) {
	prompt := fmt.Sprintf(pdfSystemPrompt, ac.CurrentPage, len(ac.Pages))
	if ac.SelectedText != "" {
		prompt += fmt.Sprintf(" The user has selected this text: %q.", ac.SelectedText)
	}
	return prompt, []Tool{
		NewSearchDocument(ac.Pages),
		NewGotoPage(r.backend, ac.DocumentID, len(ac.Pages)),
	}
}

const maxSearchMatches = 8

// SearchDocument searches the resolved document pages for a query string
// and reports page-numbered matches.
type SearchDocument struct {
	pages []types.Page
}

// NewSearchDocument creates a search tool over the given pages.
func NewSearchDocument(pages []types.Page) *SearchDocument {
	return &SearchDocument{pages: pages}
}

func (s *SearchDocument) Name() string { return "search_document" }
func (s *SearchDocument) Description() string {
	return "Search the loaded document for a phrase and return matching passages with page numbers"
}
func (s *SearchDocument) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "Phrase to search for (case-insensitive)"}
		},
		"required": ["query"]
	}`)
}

func (s *SearchDocument) Execute(_ context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if params.Query == "" {
		return "", fmt.Errorf("query is required")
	}

	needle := strings.ToLower(params.Query)
	var out strings.Builder
	matches := 0
	for _, page := range s.pages {
		lower := strings.ToLower(page.Text)
		idx := strings.Index(lower, needle)
		if idx < 0 {
			continue
		}
		matches++
		fmt.Fprintf(&out, "p. %d: %s\n", page.Number, excerpt(page.Text, idx, len(params.Query)))
		if matches >= maxSearchMatches {
			out.WriteString("[more matches truncated]\n")
			break
		}
	}
	if matches == 0 {
		return fmt.Sprintf("no matches for %q in %d pages", params.Query, len(s.pages)), nil
	}
	return out.String(), nil
}

// excerpt returns the match with some surrounding context, trimmed to word
// boundaries where practical.
func excerpt(text string, idx, matchLen int) string {
	const margin = 120
	start := idx - margin
	if start < 0 {
		start = 0
	}
	end := idx + matchLen + margin
	if end > len(text) {
		end = len(text)
	}
	snippet := strings.TrimSpace(text[start:end])
	snippet = strings.ReplaceAll(snippet, "\n", " ")
	return "..." + snippet + "..."
}

// GotoPage asks the backend to navigate the viewer to a page.
type GotoPage struct {
	backend    Backend
	documentID string
	pageCount  int
}

// NewGotoPage creates a navigation tool bounded by the document's page count.
func NewGotoPage(backend Backend, documentID string, pageCount int) *GotoPage {
	return &GotoPage{backend: backend, documentID: documentID, pageCount: pageCount}
}

func (g *GotoPage) Name() string        { return "goto_page" }
func (g *GotoPage) Description() string { return "Navigate the document viewer to a specific page" }
func (g *GotoPage) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"page": {"type": "integer", "description": "1-based page number to navigate to"}
		},
		"required": ["page"]
	}`)
}

func (g *GotoPage) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Page int `json:"page"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if params.Page < 1 || params.Page > g.pageCount {
		return "", fmt.Errorf("page %d out of range 1..%d", params.Page, g.pageCount)
	}
	return g.backend.Apply(ctx, g.documentID, g.Name(), args)
}
