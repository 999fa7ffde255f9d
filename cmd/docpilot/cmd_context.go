package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/docpilot/internal/types"
)

func init() {
	rootCmd.AddCommand(contextCmd)
	contextCmd.AddCommand(contextLoadCmd, contextClearCmd)
}

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Manage cached document context",
}

var contextLoadCmd = &cobra.Command{
	Use:   "load <session> <path>",
	Short: "Load a local document into the session's context cache",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		orch, err := newOrchestrator(cfg)
		if err != nil {
			return err
		}
		defer orch.Close()

		stats, err := orch.LoadContext(cmd.Context(), types.SessionID(args[0]), args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Loaded %d pages (%d words)\n", stats.PageCount, stats.TotalWords)
		return nil
	},
}

var contextClearCmd = &cobra.Command{
	Use:   "clear <session>",
	Short: "Clear the session's cached document context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		orch, err := newOrchestrator(cfg)
		if err != nil {
			return err
		}
		defer orch.Close()

		orch.ClearContext(types.SessionID(args[0]))
		fmt.Fprintln(os.Stdout, "Cleared")
		return nil
	},
}
