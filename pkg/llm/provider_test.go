package llm

import (
	"context"
	"testing"
)

// MockProvider is a test double that satisfies the Provider interface.
type MockProvider struct {
	StreamFunc func(ctx context.Context, req *Request) (<-chan Chunk, error)
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Stream(ctx context.Context, req *Request) (<-chan Chunk, error) {
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, req)
	}
	ch := make(chan Chunk, 2)
	ch <- Chunk{Text: "mock stream"}
	ch <- Chunk{Done: true}
	close(ch)
	return ch, nil
}

func TestProviderInterface(t *testing.T) {
	var provider Provider = &MockProvider{}
	ctx := context.Background()

	chunks, err := provider.Stream(ctx, &Request{
		Messages: []Message{{Role: "user", Content: "test"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	var text string
	var done bool
	for chunk := range chunks {
		if chunk.Err != nil {
			t.Fatal(chunk.Err)
		}
		text += chunk.Text
		if chunk.Done {
			done = true
		}
	}
	if text == "" {
		t.Error("expected non-empty streamed text")
	}
	if !done {
		t.Error("expected a done chunk")
	}
}

func TestMockProviderCustomStream(t *testing.T) {
	mock := &MockProvider{
		StreamFunc: func(ctx context.Context, req *Request) (<-chan Chunk, error) {
			ch := make(chan Chunk, 3)
			ch <- Chunk{Text: "hello "}
			ch <- Chunk{Text: "world"}
			ch <- Chunk{Done: true, Usage: &Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}}
			close(ch)
			return ch, nil
		},
	}

	chunks, err := mock.Stream(context.Background(), &Request{})
	if err != nil {
		t.Fatal(err)
	}

	var text string
	var usage *Usage
	for chunk := range chunks {
		text += chunk.Text
		if chunk.Done {
			usage = chunk.Usage
		}
	}
	if text != "hello world" {
		t.Errorf("expected 'hello world', got %q", text)
	}
	if usage == nil || usage.TotalTokens != 15 {
		t.Errorf("expected 15 total tokens, got %+v", usage)
	}
}
