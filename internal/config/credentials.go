package config

import (
	"context"
)

// Credentials resolves provider API keys from the loaded config (which
// already folds in env overrides). It implements llm.CredentialProvider.
type Credentials struct {
	cfg *Config
}

// NewCredentials creates a credential provider backed by cfg.
func NewCredentials(cfg *Config) *Credentials {
	return &Credentials{cfg: cfg}
}

// Resolve returns the API key for the named provider, or false when no
// credential is configured. Absence is terminal for the call that needed
// it; the orchestrator never retries credential resolution.
func (c *Credentials) Resolve(_ context.Context, provider string) (string, bool) {
	switch provider {
	case "openai":
		if c.cfg.LLM.APIKey != "" {
			return c.cfg.LLM.APIKey, true
		}
	case "anthropic":
		if c.cfg.Anthropic.APIKey != "" {
			return c.cfg.Anthropic.APIKey, true
		}
	}
	return "", false
}
