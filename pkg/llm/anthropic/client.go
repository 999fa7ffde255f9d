// Package anthropic implements the llm.Provider interface on top of the
// official Anthropic SDK. It converts between the provider-neutral request
// format and Anthropic's content-block model, and translates the SDK's SSE
// events into llm.Chunk values.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/user/docpilot/pkg/llm"
)

// Client implements llm.Provider for Anthropic's Messages API. A fresh SDK
// client is built per call so credential rotation takes effect immediately.
type Client struct {
	config *llm.Config
	creds  llm.CredentialProvider
}

// New creates a new Anthropic client with the given configuration.
func New(config *llm.Config, creds llm.CredentialProvider) *Client {
	return &Client{config: config, creds: creds}
}

// Name returns the provider name used for credential resolution.
func (c *Client) Name() string { return "anthropic" }

// Stream sends a streaming Messages request and returns a channel of chunks.
func (c *Client) Stream(ctx context.Context, req *llm.Request) (<-chan llm.Chunk, error) {
	apiKey, ok := c.creds.Resolve(ctx, c.Name())
	if !ok {
		return nil, llm.ErrNoCredential
	}

	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}

	options := []option.RequestOption{option.WithAPIKey(apiKey)}
	if c.config.BaseURL != "" {
		options = append(options, option.WithBaseURL(c.config.BaseURL))
	}
	client := anthropic.NewClient(options...)

	stream := client.Messages.NewStreaming(ctx, params)

	chunks := make(chan llm.Chunk)
	go func() {
		defer close(chunks)
		defer stream.Close()
		c.processStream(ctx, stream, chunks)
	}()

	return chunks, nil
}

func (c *Client) buildParams(req *llm.Request) (anthropic.MessageNewParams, error) {
	messages, err := convertMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.config.MaxTokens
	}
	if maxTokens == 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.Model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}

	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.System}}
	}

	if len(req.Tools) > 0 {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		params.Tools = tools
	}

	return params, nil
}

// convertMessages maps provider-neutral messages onto Anthropic's
// content-block format. Tool results ride in user messages; tool calls in
// assistant messages.
func convertMessages(messages []llm.Message) ([]anthropic.MessageParam, error) {
	var result []anthropic.MessageParam

	for _, msg := range messages {
		if msg.Role == "system" {
			continue
		}

		var content []anthropic.ContentBlockParamUnion

		if msg.Role == "tool" {
			content = append(content, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false))
			result = append(result, anthropic.NewUserMessage(content...))
			continue
		}

		if msg.Content != "" {
			content = append(content, anthropic.NewTextBlock(msg.Content))
		}

		for _, tc := range msg.Tools {
			var input map[string]interface{}
			if len(tc.Function.Arguments) > 0 {
				if err := json.Unmarshal(tc.Function.Arguments, &input); err != nil {
					return nil, fmt.Errorf("invalid tool call arguments: %w", err)
				}
			}
			content = append(content, anthropic.NewToolUseBlock(tc.ID, input, tc.Function.Name))
		}

		if len(content) == 0 {
			continue
		}

		if msg.Role == "assistant" {
			result = append(result, anthropic.NewAssistantMessage(content...))
		} else {
			result = append(result, anthropic.NewUserMessage(content...))
		}
	}

	return result, nil
}

func convertTools(tools []llm.Tool) ([]anthropic.ToolUnionParam, error) {
	result := make([]anthropic.ToolUnionParam, 0, len(tools))

	for _, tool := range tools {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(tool.Function.Parameters, &schema); err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", tool.Function.Name, err)
		}

		param := anthropic.ToolUnionParamOfTool(schema, tool.Function.Name)
		if param.OfTool == nil {
			return nil, fmt.Errorf("invalid tool schema for %s: missing tool definition", tool.Function.Name)
		}
		param.OfTool.Description = anthropic.String(tool.Function.Description)
		result = append(result, param)
	}

	return result, nil
}

// processStream consumes the SDK's SSE events and forwards chunks. Tool
// calls arrive fragmented (block start with id/name, input JSON deltas,
// block stop); they are assembled here and emitted whole.
func (c *Client) processStream(ctx context.Context, stream *ssestream.Stream[anthropic.MessageStreamEventUnion], chunks chan<- llm.Chunk) {
	var currentToolCall *llm.ToolCall
	var currentToolInput strings.Builder
	var inputTokens, outputTokens int

	send := func(chunk llm.Chunk) bool {
		select {
		case chunks <- chunk:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for stream.Next() {
		event := stream.Current()

		switch event.Type {
		case "message_start":
			messageStart := event.AsMessageStart()
			if messageStart.Message.Usage.InputTokens > 0 {
				inputTokens = int(messageStart.Message.Usage.InputTokens)
			}

		case "content_block_start":
			contentBlock := event.AsContentBlockStart().ContentBlock
			if contentBlock.Type == "tool_use" {
				toolUse := contentBlock.AsToolUse()
				currentToolCall = &llm.ToolCall{
					ID:   toolUse.ID,
					Type: "function",
					Function: llm.FunctionCall{
						Name: toolUse.Name,
					},
				}
				currentToolInput.Reset()
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					if !send(llm.Chunk{Text: delta.Text}) {
						return
					}
				}
			case "input_json_delta":
				if delta.PartialJSON != "" {
					currentToolInput.WriteString(delta.PartialJSON)
				}
			}

		case "content_block_stop":
			if currentToolCall != nil {
				args := currentToolInput.String()
				if args == "" {
					args = "{}"
				}
				currentToolCall.Function.Arguments = json.RawMessage(args)
				if !send(llm.Chunk{ToolCall: currentToolCall}) {
					return
				}
				currentToolCall = nil
			}

		case "message_delta":
			messageDelta := event.AsMessageDelta()
			if messageDelta.Usage.OutputTokens > 0 {
				outputTokens = int(messageDelta.Usage.OutputTokens)
			}

		case "message_stop":
			send(llm.Chunk{
				Done: true,
				Usage: &llm.Usage{
					InputTokens:  inputTokens,
					OutputTokens: outputTokens,
					TotalTokens:  inputTokens + outputTokens,
				},
			})
			return
		}
	}

	if err := stream.Err(); err != nil && ctx.Err() == nil {
		send(llm.Chunk{Err: fmt.Errorf("anthropic stream: %w", err)})
		return
	}
	if ctx.Err() != nil {
		return
	}
	send(llm.Chunk{
		Done: true,
		Usage: &llm.Usage{
			InputTokens:  inputTokens,
			OutputTokens: outputTokens,
			TotalTokens:  inputTokens + outputTokens,
		},
	})
}
