package config

import (
	"os"
	"path/filepath"
	"testing"
)

func tempConfigPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "config.json")
}

func TestSave_ReloadRoundTrip(t *testing.T) {
	path := tempConfigPath(t)

	original := &Config{
		DataDir:       "/tmp/test-data",
		LogLevel:      "debug",
		ListenAddr:    "127.0.0.1:9999",
		MaxToolRounds: 20,
	}
	original.LLM.Provider = "anthropic"
	original.LLM.BaseURL = "https://api.openai.com/v1"
	original.LLM.APIKey = "sk-test-round-trip"
	original.LLM.Model = "gpt-4o"
	original.LLM.MaxTokens = 4000
	original.LLM.Temperature = 0.5
	original.LLM.MaxContextTokens = 128000
	original.LLM.OutputReserve = 4096
	original.Anthropic.APIKey = "sk-ant-test"
	original.Anthropic.Model = "claude-sonnet-4-20250514"

	if err := Save(path, original); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.LogLevel != original.LogLevel {
		t.Errorf("LogLevel mismatch: %v != %v", loaded.LogLevel, original.LogLevel)
	}
	if loaded.ListenAddr != original.ListenAddr {
		t.Errorf("ListenAddr mismatch: %v != %v", loaded.ListenAddr, original.ListenAddr)
	}
	if loaded.MaxToolRounds != original.MaxToolRounds {
		t.Errorf("MaxToolRounds mismatch: %v != %v", loaded.MaxToolRounds, original.MaxToolRounds)
	}
	if loaded.LLM.Provider != original.LLM.Provider {
		t.Errorf("LLM.Provider mismatch: %v != %v", loaded.LLM.Provider, original.LLM.Provider)
	}
	if loaded.LLM.Model != original.LLM.Model {
		t.Errorf("LLM.Model mismatch: %v != %v", loaded.LLM.Model, original.LLM.Model)
	}
	if loaded.Anthropic.Model != original.Anthropic.Model {
		t.Errorf("Anthropic.Model mismatch: %v != %v", loaded.Anthropic.Model, original.Anthropic.Model)
	}
}

func TestLoad_WritesDefaults(t *testing.T) {
	path := tempConfigPath(t)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("defaults were not written: %v", err)
	}
	if cfg.LLM.Provider != "openai" {
		t.Errorf("expected default provider openai, got %q", cfg.LLM.Provider)
	}
	if cfg.MaxToolRounds != 10 {
		t.Errorf("expected default max_tool_rounds 10, got %d", cfg.MaxToolRounds)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	path := tempConfigPath(t)
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.APIKey != "sk-from-env" {
		t.Errorf("expected env override for llm.api_key, got %q", cfg.LLM.APIKey)
	}
	if cfg.Anthropic.APIKey != "sk-ant-from-env" {
		t.Errorf("expected env override for anthropic.api_key, got %q", cfg.Anthropic.APIKey)
	}
}

func TestSetValue_GetValue(t *testing.T) {
	path := tempConfigPath(t)
	if _, err := Load(path); err != nil {
		t.Fatal(err)
	}

	if err := SetValue(path, "llm.model", "gpt-4o"); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}
	val, err := GetValue(path, "llm.model")
	if err != nil {
		t.Fatalf("GetValue failed: %v", err)
	}
	if val != "gpt-4o" {
		t.Errorf("expected gpt-4o, got %v", val)
	}

	if err := SetValue(path, "max_tool_rounds", "5"); err != nil {
		t.Fatalf("SetValue numeric failed: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MaxToolRounds != 5 {
		t.Errorf("expected max_tool_rounds 5, got %d", cfg.MaxToolRounds)
	}
}

func TestSetValue_UnknownKey(t *testing.T) {
	path := tempConfigPath(t)
	if _, err := Load(path); err != nil {
		t.Fatal(err)
	}
	if err := SetValue(path, "nope.nothing", "x"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestCredentials_Resolve(t *testing.T) {
	cfg := &Config{}
	cfg.LLM.APIKey = "sk-openai"

	creds := NewCredentials(cfg)
	ctx := t.Context()

	key, ok := creds.Resolve(ctx, "openai")
	if !ok || key != "sk-openai" {
		t.Errorf("expected openai credential, got %q ok=%v", key, ok)
	}
	if _, ok := creds.Resolve(ctx, "anthropic"); ok {
		t.Error("expected absent anthropic credential")
	}
	if _, ok := creds.Resolve(ctx, "unknown"); ok {
		t.Error("expected absent credential for unknown provider")
	}
}
