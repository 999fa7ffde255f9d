package llm

import "context"

// Provider defines the interface for interacting with LLM backends.
// Implementations handle protocol-specific details such as request
// formatting, authentication, and response parsing.
//
// Stream returns immediately with a channel of incremental chunks. The
// channel is closed when the stream ends; a chunk with Err set reports a
// provider failure and is the last chunk sent. Implementations must stop
// producing promptly when ctx is cancelled.
type Provider interface {
	Name() string
	Stream(ctx context.Context, req *Request) (<-chan Chunk, error)
}

// Config holds common configuration for LLM providers.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
}

// CredentialProvider resolves an API credential for a named provider.
// An absent credential is a terminal, non-retryable condition for the call
// that needed it.
type CredentialProvider interface {
	Resolve(ctx context.Context, provider string) (string, bool)
}
