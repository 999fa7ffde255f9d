package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/user/docpilot/internal/toolset"
	"github.com/user/docpilot/internal/types"
	"github.com/user/docpilot/pkg/llm"
)

// Stream outcomes as logged by the controller.
const (
	outcomeCompleted = "completed"
	outcomeErrored   = "errored"
	outcomeCancelled = "cancelled"
)

// mux translates provider chunks into the ordered stream-event taxonomy for
// a single stream. All sends go through emit, which aborts on cancellation
// so no event follows a terminal one and nothing is emitted after the
// stream context ends.
type mux struct {
	ctx       context.Context
	events    chan<- types.StreamEvent
	streamID  types.StreamID
	sessionID types.SessionID
	text      strings.Builder
}

func (m *mux) emit(ev types.StreamEvent) bool {
	ev.StreamID = m.streamID
	ev.SessionID = m.sessionID
	ev.At = time.Now()
	select {
	case m.events <- ev:
		return true
	case <-m.ctx.Done():
		return false
	}
}

func (m *mux) textDelta(delta string) bool {
	m.text.WriteString(delta)
	return m.emit(types.StreamEvent{Type: types.EventTextDelta, Delta: delta})
}

func (m *mux) textDone() bool {
	return m.emit(types.StreamEvent{Type: types.EventTextDone, Text: m.text.String()})
}

func (m *mux) finish(usage types.Usage) bool {
	return m.emit(types.StreamEvent{Type: types.EventFinish, Usage: &usage})
}

func (m *mux) error(msg string) bool {
	return m.emit(types.StreamEvent{Type: types.EventError, Error: msg})
}

// runStream drives the provider conversation for one stream: consume chunks,
// execute requested tools, feed results back, repeat until the model stops
// asking for tools or the round bound is hit. Returns the stream outcome.
//
// Cancellation is cooperative: it is checked at every chunk and tool
// boundary, and a cancelled stream simply stops without a finish or error
// event. Tool failures stay contained in tool-call-done payloads; only
// provider/transport failures end the stream with an error event.
func (o *Orchestrator) runStream(
	ctx context.Context,
	streamID types.StreamID,
	req StartRequest,
	ac *types.AgentContext,
	sysPrompt string,
	tools []toolset.Tool,
	events chan<- types.StreamEvent,
) string {
	m := &mux{
		ctx:       ctx,
		events:    events,
		streamID:  streamID,
		sessionID: req.SessionID,
	}

	fullSys, messages := o.prompts.Build(ac, sysPrompt, req.PriorMessages, req.Prompt, req.Images)
	llmTools := toolset.AsLLMTools(tools)

	var usage types.Usage

	for round := 0; round < o.maxRounds; round++ {
		chunks, err := o.provider.Stream(ctx, &llm.Request{
			System:   fullSys,
			Messages: messages,
			Tools:    llmTools,
		})
		if err != nil {
			if ctx.Err() != nil {
				return outcomeCancelled
			}
			m.error(fmt.Sprintf("provider request failed: %v", err))
			return outcomeErrored
		}

		toolCalls, ok := m.consume(chunks, &usage)
		if !ok {
			if ctx.Err() != nil {
				return outcomeCancelled
			}
			return outcomeErrored
		}

		if len(toolCalls) == 0 {
			if !m.textDone() {
				return outcomeCancelled
			}
			if !m.finish(usage) {
				return outcomeCancelled
			}
			return outcomeCompleted
		}

		// Mint IDs for calls the provider left unidentified before anything
		// records them, so the event stream and the conversation history fed
		// back to the model pair up on the same ID.
		for i := range toolCalls {
			if toolCalls[i].ID == "" {
				toolCalls[i].ID = string(types.NewToolCallID())
			}
		}

		messages = append(messages, llm.Message{Role: "assistant", Tools: toolCalls})
		for _, tc := range toolCalls {
			if ctx.Err() != nil {
				return outcomeCancelled
			}
			result, ok := m.executeTool(tools, tc)
			if !ok {
				return outcomeCancelled
			}
			messages = append(messages, llm.Message{
				Role:       "tool",
				Content:    result,
				ToolCallID: tc.ID,
			})
		}
	}

	m.error(fmt.Sprintf("tool loop exceeded %d rounds without a final answer", o.maxRounds))
	return outcomeErrored
}

// consume drains one provider stream, emitting text deltas and collecting
// tool calls. The bool result is false when the round cannot continue:
// either the context was cancelled or a provider error was emitted.
func (m *mux) consume(chunks <-chan llm.Chunk, usage *types.Usage) ([]llm.ToolCall, bool) {
	var toolCalls []llm.ToolCall
	for {
		select {
		case <-m.ctx.Done():
			return nil, false
		case chunk, open := <-chunks:
			if !open {
				return toolCalls, true
			}
			switch {
			case chunk.Err != nil:
				if m.ctx.Err() != nil {
					return nil, false
				}
				m.error(fmt.Sprintf("stream failed: %v", chunk.Err))
				return nil, false
			case chunk.ToolCall != nil:
				toolCalls = append(toolCalls, *chunk.ToolCall)
			case chunk.Text != "":
				if !m.textDelta(chunk.Text) {
					return nil, false
				}
			case chunk.Done:
				if chunk.Usage != nil {
					usage.InputTokens += chunk.Usage.InputTokens
					usage.OutputTokens += chunk.Usage.OutputTokens
					usage.TotalTokens += chunk.Usage.TotalTokens
				}
			}
		}
	}
}

// executeTool runs one requested tool and emits the start/done event pair.
// Unknown tools and execution failures become error payloads inside the
// tool-call-done event; they never escalate to a stream error. The returned
// string is what gets fed back to the model as the tool result.
func (m *mux) executeTool(tools []toolset.Tool, tc llm.ToolCall) (string, bool) {
	callID := types.ToolCallID(tc.ID)

	if !m.emit(types.StreamEvent{
		Type:       types.EventToolCallStart,
		ToolCallID: callID,
		ToolName:   tc.Function.Name,
		ToolArgs:   tc.Function.Arguments,
	}) {
		return "", false
	}

	var payload types.ToolResultPayload
	tool, found := toolset.Find(tools, tc.Function.Name)
	if !found {
		payload = types.ToolResultPayload{
			IsError: true,
			Message: fmt.Sprintf("unknown tool %q", tc.Function.Name),
		}
	} else {
		out, err := tool.Execute(m.ctx, tc.Function.Arguments)
		if err != nil {
			if m.ctx.Err() != nil {
				return "", false
			}
			slog.Debug("tool execution failed",
				"session_id", string(m.sessionID),
				"tool", tc.Function.Name,
				"error", err,
			)
			payload = types.ToolResultPayload{IsError: true, Message: err.Error()}
		} else {
			payload = types.ToolResultPayload{Result: out}
		}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		raw = []byte(`{"is_error":true,"message":"unencodable tool result"}`)
	}

	if !m.emit(types.StreamEvent{
		Type:       types.EventToolCallDone,
		ToolCallID: callID,
		ToolName:   tc.Function.Name,
		ToolResult: raw,
	}) {
		return "", false
	}

	if payload.IsError {
		return fmt.Sprintf("Error: %s", payload.Message), true
	}
	return payload.Result, true
}
