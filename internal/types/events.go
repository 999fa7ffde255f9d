// internal/types/events.go
package types

import (
	"encoding/json"
	"time"
)

// EventType enumerates the closed set of stream event variants.
type EventType string

const (
	EventTextDelta     EventType = "text-delta"
	EventTextDone      EventType = "text-done"
	EventToolCallStart EventType = "tool-call-start"
	EventToolCallDone  EventType = "tool-call-done"
	EventError         EventType = "error"
	EventFinish        EventType = "finish"
)

// Usage tracks token consumption for a completed stream. Counts are
// zero-filled when the provider does not report them.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// StreamEvent is one unit of the ordered output taxonomy. For a given
// stream at most one finish-class event (finish or error) is ever emitted,
// and it is always the last event. A tool-call-start for a given ToolCallID
// always precedes its tool-call-done.
type StreamEvent struct {
	Type       EventType       `json:"type"`
	StreamID   StreamID        `json:"stream_id"`
	SessionID  SessionID       `json:"session_id"`
	At         time.Time       `json:"at"`
	Delta      string          `json:"delta,omitempty"`       // text-delta
	Text       string          `json:"text,omitempty"`        // text-done: full accumulated text
	ToolCallID ToolCallID      `json:"tool_call_id,omitempty"`
	ToolName   string          `json:"tool_name,omitempty"`
	ToolArgs   json.RawMessage `json:"tool_args,omitempty"`   // tool-call-start
	ToolResult json.RawMessage `json:"tool_result,omitempty"` // tool-call-done
	Error      string          `json:"error,omitempty"`       // error
	Usage      *Usage          `json:"usage,omitempty"`       // finish
}

// Terminal reports whether the event ends its stream.
func (e StreamEvent) Terminal() bool {
	return e.Type == EventFinish || e.Type == EventError
}

// ToolResultPayload is the JSON shape carried inside a tool-call-done
// event. Tool failures are contained here via IsError rather than escalated
// to a stream-level error.
type ToolResultPayload struct {
	Result  string `json:"result,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
	Message string `json:"message,omitempty"`
}
