// internal/types/ids.go
package types

import (
	"github.com/google/uuid"
)

// SessionID identifies a caller-defined conversational context. It is opaque
// to the orchestrator; callers typically map it 1:1 to a tab or workspace.
type SessionID string

// StreamID identifies a single stream invocation within a session.
type StreamID string

// ToolCallID identifies a tool invocation requested by the model.
type ToolCallID string

func NewStreamID() StreamID {
	return StreamID(uuid.New().String())
}

func NewToolCallID() ToolCallID {
	return ToolCallID(uuid.New().String())
}
