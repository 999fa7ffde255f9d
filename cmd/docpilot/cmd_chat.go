package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/docpilot/internal/orchestrator"
	"github.com/user/docpilot/internal/types"
)

var chatFlags struct {
	session  string
	docType  string
	docID    string
	file     string
	selected string
}

func init() {
	chatCmd.Flags().StringVar(&chatFlags.session, "session", "cli", "session id")
	chatCmd.Flags().StringVar(&chatFlags.docType, "type", "document", "document type (pdf, spreadsheet, document)")
	chatCmd.Flags().StringVar(&chatFlags.docID, "doc", "", "document id")
	chatCmd.Flags().StringVar(&chatFlags.file, "file", "", "local document path for pdf context")
	chatCmd.Flags().StringVar(&chatFlags.selected, "range", "", "selected range (spreadsheets)")
	rootCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat <prompt>",
	Short: "Stream a one-shot response to stdout",
	Args:  cobra.ExactArgs(1),
	RunE:  runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	orch, err := newOrchestrator(cfg)
	if err != nil {
		return err
	}
	defer orch.Close()

	docType, err := types.ParseDocumentType(chatFlags.docType)
	if err != nil {
		return err
	}

	events, err := orch.Start(cmd.Context(), orchestrator.StartRequest{
		SessionID:    types.SessionID(chatFlags.session),
		DocumentType: docType,
		Prompt:       args[0],
		Fragment: types.ContextFragment{
			DocumentID:    chatFlags.docID,
			SourcePath:    chatFlags.file,
			SelectedRange: chatFlags.selected,
		},
	})
	if err != nil {
		return err
	}

	for ev := range events {
		switch ev.Type {
		case types.EventTextDelta:
			fmt.Fprint(os.Stdout, ev.Delta)
		case types.EventTextDone:
			fmt.Fprintln(os.Stdout)
		case types.EventToolCallStart:
			fmt.Fprintf(os.Stderr, "[tool %s %s]\n", ev.ToolName, string(ev.ToolArgs))
		case types.EventError:
			return fmt.Errorf("stream failed: %s", ev.Error)
		case types.EventFinish:
			if ev.Usage != nil && ev.Usage.TotalTokens > 0 {
				fmt.Fprintf(os.Stderr, "[%d tokens]\n", ev.Usage.TotalTokens)
			}
		}
	}
	return nil
}
