package orchestrator

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/docpilot/internal/types"
	"github.com/user/docpilot/pkg/llm"
)

// PromptBuilder assembles token-budgeted prompts from document context and
// conversation history.
type PromptBuilder struct {
	tokenizer *tiktoken.Tiktoken
	maxTokens int
	reserve   int
}

// NewPromptBuilder creates a prompt builder for the given model.
// maxTokens is the model's context window size; reserve is the number of
// tokens held back for the model's response.
func NewPromptBuilder(model string, maxTokens, reserve int) (*PromptBuilder, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Fallback to cl100k_base for unknown models
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	return &PromptBuilder{
		tokenizer: enc,
		maxTokens: maxTokens,
		reserve:   reserve,
	}, nil
}

func (b *PromptBuilder) countTokens(text string) int {
	return len(b.tokenizer.Encode(text, nil, nil))
}

// Build assembles the final system prompt and message list for one stream.
// Document pages are appended to the system prompt within roughly 60% of the
// remaining budget; prior messages take the rest, dropping oldest first so
// the most recent exchanges survive trimming.
func (b *PromptBuilder) Build(
	ac *types.AgentContext,
	sysPrompt string,
	prior []types.ChatMessage,
	prompt string,
	images []types.Image,
) (string, []llm.Message) {
	inputBudget := b.maxTokens - b.reserve

	userMsg := llm.Message{Role: "user", Content: prompt}
	for _, img := range images {
		userMsg.Images = append(userMsg.Images, llm.Image{MimeType: img.MimeType, Data: img.Data})
	}

	remaining := inputBudget - b.countTokens(sysPrompt) - b.countTokens(prompt)
	if remaining < 0 {
		remaining = 0
	}

	docBudget := int(float64(remaining) * 0.6)
	fullSys := sysPrompt + b.renderPages(ac.Pages, docBudget)

	historyBudget := remaining - docBudget
	history := b.trimHistory(prior, historyBudget)

	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, userMsg)

	return fullSys, messages
}

// renderPages formats page content for the system prompt, stopping at the
// budget so an oversized document truncates page-aligned rather than
// mid-sentence.
func (b *PromptBuilder) renderPages(pages []types.Page, budget int) string {
	if len(pages) == 0 || budget <= 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("\n\nDocument content:\n")
	used := b.countTokens(sb.String())

	for i, page := range pages {
		block := fmt.Sprintf("\n[Page %d]\n%s\n", page.Number, page.Text)
		blockTokens := b.countTokens(block)
		if used+blockTokens > budget {
			sb.WriteString(fmt.Sprintf("\n[%d more pages omitted]\n", len(pages)-i))
			break
		}
		sb.WriteString(block)
		used += blockTokens
	}
	return sb.String()
}

// trimHistory converts prior chat messages, keeping the most recent turns
// that fit the budget.
func (b *PromptBuilder) trimHistory(prior []types.ChatMessage, budget int) []llm.Message {
	if len(prior) == 0 || budget <= 0 {
		return nil
	}

	used := 0
	keepFrom := len(prior)
	for i := len(prior) - 1; i >= 0; i-- {
		msgTokens := b.countTokens(prior[i].Content)
		if used+msgTokens > budget {
			break
		}
		used += msgTokens
		keepFrom = i
	}

	kept := prior[keepFrom:]
	messages := make([]llm.Message, 0, len(kept))
	for _, m := range kept {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	return messages
}
