// internal/toolset/document.go
package toolset

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/user/docpilot/internal/types"
)

const documentSystemPrompt = `You are a writing assistant for a text document. ` +
	`Structure your output as a report: a single top-level heading, an introduction, ` +
	`body sections with second-level headings (third-level for subsections), and a conclusion. ` +
	`Insert content into the document with insert_section; never paste whole documents into chat. ` +
	`Use research_topic when the user asks for information you need to look up, ` +
	`and attribute researched material to its source URL.`

func buildDocument(r *Registry, ac *types.AgentContext) (string, []Tool) {
	prompt := documentSystemPrompt
	if ac.SelectedText != "" {
		prompt += fmt.Sprintf(" The user has selected this passage to work on: %q.", ac.SelectedText)
	}
	return prompt, []Tool{
		NewInsertSection(r.backend, ac.DocumentID),
		NewResearchTopic(),
	}
}

// InsertSection inserts a heading plus content into the document.
type InsertSection struct {
	backend    Backend
	documentID string
}

func NewInsertSection(backend Backend, documentID string) *InsertSection {
	return &InsertSection{backend: backend, documentID: documentID}
}

func (t *InsertSection) Name() string { return "insert_section" }
func (t *InsertSection) Description() string {
	return "Insert a section (heading and markdown content) into the document at the cursor"
}
func (t *InsertSection) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"heading": {"type": "string", "description": "Section heading text"},
			"level": {"type": "integer", "description": "Heading level 1-4"},
			"content": {"type": "string", "description": "Section body as markdown"}
		},
		"required": ["heading", "level", "content"]
	}`)
}

func (t *InsertSection) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Heading string `json:"heading"`
		Level   int    `json:"level"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if params.Heading == "" || params.Content == "" {
		return "", fmt.Errorf("heading and content are required")
	}
	if params.Level < 1 || params.Level > 4 {
		return "", fmt.Errorf("level %d out of range 1..4", params.Level)
	}
	return t.backend.Apply(ctx, t.documentID, t.Name(), args)
}

const maxResearchChars = 20000

// ResearchTopic fetches a URL and returns its content as markdown for the
// model to draw on while drafting.
type ResearchTopic struct {
	client *http.Client
}

func NewResearchTopic() *ResearchTopic {
	return &ResearchTopic{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (t *ResearchTopic) Name() string { return "research_topic" }
func (t *ResearchTopic) Description() string {
	return "Fetch a web page and return its content as markdown for research"
}
func (t *ResearchTopic) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"url": {"type": "string", "description": "The URL to fetch"}
		},
		"required": ["url"]
	}`)
}

func (t *ResearchTopic) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if params.URL == "" {
		return "", fmt.Errorf("url is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, params.URL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Docpilot/1.0")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP error: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	md, err := htmltomarkdown.ConvertString(string(body))
	if err != nil {
		return "", fmt.Errorf("convert to markdown: %w", err)
	}

	if len(md) > maxResearchChars {
		md = md[:maxResearchChars] + "\n\n[Content truncated]"
	}

	return md, nil
}
