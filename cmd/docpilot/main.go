package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/docpilot/internal/config"
	"github.com/user/docpilot/internal/docctx"
	"github.com/user/docpilot/internal/orchestrator"
	"github.com/user/docpilot/internal/toolset"
	"github.com/user/docpilot/pkg/llm"
	"github.com/user/docpilot/pkg/llm/anthropic"
	"github.com/user/docpilot/pkg/llm/openai"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "docpilot",
	Short: "Document-aware agent streaming daemon",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath,
		"config",
		filepath.Join(os.Getenv("HOME"), ".docpilot", "config.json"),
		"config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func setupLogging(cfg *config.Config) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// newOrchestrator wires the provider, context cache, tool registry, and
// prompt builder from config.
func newOrchestrator(cfg *config.Config) (*orchestrator.Orchestrator, error) {
	creds := config.NewCredentials(cfg)

	var provider llm.Provider
	switch cfg.LLM.Provider {
	case "anthropic":
		provider = anthropic.New(&llm.Config{
			Model:       cfg.Anthropic.Model,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
		}, creds)
	case "openai":
		provider = openai.New(&llm.Config{
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
		}, creds)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}

	prompts, err := orchestrator.NewPromptBuilder(cfg.LLM.Model, cfg.LLM.MaxContextTokens, cfg.LLM.OutputReserve)
	if err != nil {
		return nil, fmt.Errorf("create prompt builder: %w", err)
	}

	return orchestrator.New(
		provider,
		creds,
		docctx.NewCache(),
		docctx.NewFileSource(),
		toolset.NewRegistry(toolset.AckBackend{}),
		prompts,
		cfg.MaxToolRounds,
	), nil
}
