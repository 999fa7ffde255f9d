// Package toolset maps a document type to its callable tool set and system
// instruction. The mapping is a pure dispatch table: nothing in this package
// invokes the model, and tool side effects go through the injected Backend.
package toolset

import (
	"context"
	"encoding/json"

	"github.com/user/docpilot/pkg/llm"
)

// Tool defines the interface for an executable tool.
type Tool interface {
	Name() string
	Description() string
	Parameters() json.RawMessage
	Execute(ctx context.Context, args json.RawMessage) (string, error)
}

// Backend executes document-mutation side effects on behalf of tools and
// returns a result payload. The op names are the tool names; args are the
// model-supplied arguments after validation.
type Backend interface {
	Apply(ctx context.Context, documentID, op string, args json.RawMessage) (string, error)
}

// AsLLMTools converts tools to the provider format.
func AsLLMTools(tools []Tool) []llm.Tool {
	out := make([]llm.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, llm.Tool{
			Type: "function",
			Function: llm.Function{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return out
}

// Find returns the tool with the given name.
func Find(tools []Tool, name string) (Tool, bool) {
	for _, t := range tools {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}
