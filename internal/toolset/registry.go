// internal/toolset/registry.go
package toolset

import (
	"fmt"

	"github.com/user/docpilot/internal/types"
)

// Registry resolves (system instruction, tool set) pairs per document type.
// Adding a document type means adding one entry to the dispatch table; the
// existing variants are never touched.
type Registry struct {
	backend Backend
	table   map[types.DocumentType]builder
}

// builder constructs the (prompt, tools) pair for one document type from a
// resolved agent context.
type builder func(r *Registry, ac *types.AgentContext) (string, []Tool)

// NewRegistry creates a Registry whose mutating tools apply side effects
// through the given backend.
func NewRegistry(backend Backend) *Registry {
	r := &Registry{backend: backend}
	r.table = map[types.DocumentType]builder{
		types.DocTypePDF:         buildPDF,
		types.DocTypeSpreadsheet: buildSpreadsheet,
		types.DocTypeDocument:    buildDocument,
	}
	return r
}

// For returns the system instruction and tool set for the context's
// document type.
func (r *Registry) For(ac *types.AgentContext) (string, []Tool, error) {
	build, ok := r.table[ac.DocumentType]
	if !ok {
		return "", nil, fmt.Errorf("unknown document type %q", ac.DocumentType)
	}
	prompt, tools := build(r, ac)
	return prompt, tools, nil
}
