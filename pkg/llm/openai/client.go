package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/user/docpilot/pkg/llm"
)

// Client implements the llm.Provider interface for OpenAI-compatible APIs.
// The API key is resolved through the credential provider on every call, so
// a key rotated at runtime takes effect on the next stream.
type Client struct {
	config     *llm.Config
	creds      llm.CredentialProvider
	httpClient *http.Client
}

// New creates a new OpenAI-compatible client with the given configuration.
func New(config *llm.Config, creds llm.CredentialProvider) *Client {
	return &Client{
		config: config,
		creds:  creds,
		httpClient: &http.Client{
			// No overall timeout: streams are long-lived and bounded by ctx.
			Timeout: 0,
		},
	}
}

// Name returns the provider name used for credential resolution.
func (c *Client) Name() string { return "openai" }

// chatRequest is the OpenAI chat completions request body.
type chatRequest struct {
	Model         string           `json:"model"`
	Messages      []requestMessage `json:"messages"`
	Tools         []llm.Tool       `json:"tools,omitempty"`
	MaxTokens     int              `json:"max_tokens,omitempty"`
	Temperature   *float32         `json:"temperature,omitempty"`
	Stream        bool             `json:"stream"`
	StreamOptions *streamOptions   `json:"stream_options,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// requestMessage is the OpenAI message format for requests.
type requestMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []llm.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

// streamChunk is one decoded SSE data payload from the chat completions
// stream.
type streamChunk struct {
	Choices []streamChoice `json:"choices"`
	Usage   *responseUsage `json:"usage"`
}

type streamChoice struct {
	Delta        streamDelta `json:"delta"`
	FinishReason string      `json:"finish_reason"`
}

type streamDelta struct {
	Content   string           `json:"content"`
	ToolCalls []streamToolCall `json:"tool_calls"`
}

// streamToolCall is the fragmented tool-call format used in streaming
// responses: the first fragment for an index carries the id and name,
// subsequent fragments append argument JSON.
type streamToolCall struct {
	Index    int    `json:"index"`
	ID       string `json:"id"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// responseUsage is the OpenAI token usage format.
type responseUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Stream sends a chat completion request and returns a channel of
// incremental chunks parsed from the SSE response.
func (c *Client) Stream(ctx context.Context, req *llm.Request) (<-chan llm.Chunk, error) {
	apiKey, ok := c.creds.Resolve(ctx, c.Name())
	if !ok {
		return nil, llm.ErrNoCredential
	}

	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := c.config.BaseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	chunks := make(chan llm.Chunk)
	go func() {
		defer close(chunks)
		defer resp.Body.Close()
		c.consumeSSE(ctx, resp.Body, chunks)
	}()

	return chunks, nil
}

func (c *Client) buildRequest(req *llm.Request) chatRequest {
	messages := make([]requestMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, requestMessage{Role: "system", Content: req.System})
	}
	for _, msg := range req.Messages {
		rm := requestMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
		if msg.Role == "tool" {
			rm.ToolCallID = msg.ToolCallID
		} else if len(msg.Tools) > 0 {
			rm.ToolCalls = msg.Tools
		}
		messages = append(messages, rm)
	}

	out := chatRequest{
		Model:         c.config.Model,
		Messages:      messages,
		Stream:        true,
		StreamOptions: &streamOptions{IncludeUsage: true},
	}
	if len(req.Tools) > 0 {
		out.Tools = req.Tools
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.config.MaxTokens
	}
	if maxTokens > 0 {
		out.MaxTokens = maxTokens
	}
	temp := req.Temperature
	if temp == 0 {
		temp = c.config.Temperature
	}
	if temp != 0 {
		out.Temperature = &temp
	}
	return out
}

// consumeSSE reads "data:" lines from the response body, assembling
// fragmented tool calls by index and forwarding text deltas as they arrive.
func (c *Client) consumeSSE(ctx context.Context, body io.Reader, chunks chan<- llm.Chunk) {
	pending := make(map[int]*llm.ToolCall)
	pendingArgs := make(map[int]*strings.Builder)
	var usage *llm.Usage

	send := func(chunk llm.Chunk) bool {
		select {
		case chunks <- chunk:
			return true
		case <-ctx.Done():
			return false
		}
	}

	flushToolCalls := func() bool {
		// Fragment indices are not guaranteed to start at zero or be
		// contiguous; emit whatever indices arrived, in order.
		indices := make([]int, 0, len(pending))
		for i := range pending {
			indices = append(indices, i)
		}
		sort.Ints(indices)
		for _, i := range indices {
			tc := pending[i]
			tc.Function.Arguments = json.RawMessage(pendingArgs[i].String())
			if !send(llm.Chunk{ToolCall: tc}) {
				return false
			}
		}
		pending = make(map[int]*llm.ToolCall)
		pendingArgs = make(map[int]*strings.Builder)
		return true
	}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			if !flushToolCalls() {
				return
			}
			send(llm.Chunk{Done: true, Usage: usage})
			return
		}

		var sc streamChunk
		if err := json.Unmarshal([]byte(data), &sc); err != nil {
			send(llm.Chunk{Err: fmt.Errorf("parsing stream chunk: %w", err)})
			return
		}

		if sc.Usage != nil {
			usage = &llm.Usage{
				InputTokens:  sc.Usage.PromptTokens,
				OutputTokens: sc.Usage.CompletionTokens,
				TotalTokens:  sc.Usage.TotalTokens,
			}
		}
		if len(sc.Choices) == 0 {
			continue
		}
		choice := sc.Choices[0]

		if choice.Delta.Content != "" {
			if !send(llm.Chunk{Text: choice.Delta.Content}) {
				return
			}
		}

		for _, frag := range choice.Delta.ToolCalls {
			tc, ok := pending[frag.Index]
			if !ok {
				tc = &llm.ToolCall{Type: "function"}
				pending[frag.Index] = tc
				pendingArgs[frag.Index] = &strings.Builder{}
			}
			if frag.ID != "" {
				tc.ID = frag.ID
			}
			if frag.Function.Name != "" {
				tc.Function.Name = frag.Function.Name
			}
			pendingArgs[frag.Index].WriteString(frag.Function.Arguments)
		}

		// Some servers report tool_calls as the finish reason before [DONE];
		// flush so the caller sees complete calls as early as possible.
		if choice.FinishReason == "tool_calls" {
			if !flushToolCalls() {
				return
			}
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		send(llm.Chunk{Err: fmt.Errorf("reading stream: %w", err)})
		return
	}
	if ctx.Err() != nil {
		return
	}
	// Stream ended without a [DONE] marker; treat as complete.
	if !flushToolCalls() {
		return
	}
	send(llm.Chunk{Done: true, Usage: usage})
}
