// internal/toolset/spreadsheet.go
package toolset

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/user/docpilot/internal/types"
)

const spreadsheetSystemPrompt = `You are a spreadsheet assistant. ` +
	`Build tables with set_cell_range, computed cells with set_formula, and styling with format_range. ` +
	`Formatting conventions: numeric values use at most 2 decimal places, ` +
	`header rows are bold, and currency columns carry an explicit currency symbol. ` +
	`Prefer one set_cell_range call for a whole table over many single-cell calls. ` +
	`After mutating the sheet, summarize what changed in plain language.`

func buildSpreadsheet(r *Registry, ac *types.AgentContext) (string, []Tool) {
	prompt := spreadsheetSystemPrompt
	if ac.SelectedRange != "" {
		prompt += fmt.Sprintf(" The user currently has range %s selected.", ac.SelectedRange)
	}
	return prompt, []Tool{
		NewSetCellRange(r.backend, ac.DocumentID),
		NewSetFormula(r.backend, ac.DocumentID),
		NewFormatRange(r.backend, ac.DocumentID),
	}
}

// SetCellRange writes a rectangular block of values into the sheet.
type SetCellRange struct {
	backend    Backend
	documentID string
}

func NewSetCellRange(backend Backend, documentID string) *SetCellRange {
	return &SetCellRange{backend: backend, documentID: documentID}
}

func (t *SetCellRange) Name() string { return "set_cell_range" }
func (t *SetCellRange) Description() string {
	return "Write a rectangular block of cell values starting at the given A1-style range"
}
func (t *SetCellRange) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"range": {"type": "string", "description": "A1-style target range, e.g. \"A1:C4\""},
			"values": {
				"type": "array",
				"items": {"type": "array", "items": {"type": "string"}},
				"description": "Row-major cell values"
			}
		},
		"required": ["range", "values"]
	}`)
}

func (t *SetCellRange) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Range  string     `json:"range"`
		Values [][]string `json:"values"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if params.Range == "" {
		return "", fmt.Errorf("range is required")
	}
	if len(params.Values) == 0 {
		return "", fmt.Errorf("values must not be empty")
	}
	return t.backend.Apply(ctx, t.documentID, t.Name(), args)
}

// SetFormula writes a formula into a single cell.
type SetFormula struct {
	backend    Backend
	documentID string
}

func NewSetFormula(backend Backend, documentID string) *SetFormula {
	return &SetFormula{backend: backend, documentID: documentID}
}

func (t *SetFormula) Name() string { return "set_formula" }
func (t *SetFormula) Description() string {
	return "Set a formula on a cell, e.g. \"=SUM(B2:B10)\" on B11"
}
func (t *SetFormula) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"cell": {"type": "string", "description": "A1-style cell reference"},
			"formula": {"type": "string", "description": "Formula text, must start with '='"}
		},
		"required": ["cell", "formula"]
	}`)
}

func (t *SetFormula) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Cell    string `json:"cell"`
		Formula string `json:"formula"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if params.Cell == "" || params.Formula == "" {
		return "", fmt.Errorf("cell and formula are required")
	}
	if params.Formula[0] != '=' {
		return "", fmt.Errorf("formula must start with '='")
	}
	return t.backend.Apply(ctx, t.documentID, t.Name(), args)
}

// FormatRange applies styling to a range of cells.
type FormatRange struct {
	backend    Backend
	documentID string
}

func NewFormatRange(backend Backend, documentID string) *FormatRange {
	return &FormatRange{backend: backend, documentID: documentID}
}

func (t *FormatRange) Name() string { return "format_range" }
func (t *FormatRange) Description() string {
	return "Apply formatting (bold, number format, background color) to a cell range"
}
func (t *FormatRange) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"range": {"type": "string", "description": "A1-style target range"},
			"bold": {"type": "boolean", "description": "Bold text"},
			"number_format": {"type": "string", "description": "Number format pattern, e.g. \"0.00\" or \"$#,##0.00\""},
			"background": {"type": "string", "description": "Background color as #RRGGBB"}
		},
		"required": ["range"]
	}`)
}

func (t *FormatRange) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Range string `json:"range"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if params.Range == "" {
		return "", fmt.Errorf("range is required")
	}
	return t.backend.Apply(ctx, t.documentID, t.Name(), args)
}
