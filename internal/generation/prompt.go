package generation

import (
	"fmt"
	"strings"

	"github.com/Ayash-Bera/coursebot/internal/retrieval"
)

const (
	DefaultMaxContextChars = 4000
	TruncationMarker       = "\n... [truncated]"
)

// DefaultSystemPrompt is the admissions-assistant persona.
const DefaultSystemPrompt = `You are a helpful and professional admissions assistant for NextLeap, an ed-tech platform offering fellowship programmes in Product Management, Business Analytics, Data Analytics, and UI/UX Design.

Guidelines:
1. Answer ONLY using the information provided in the CONTEXT BLOCKS below.
2. If the context does not contain the answer, respond with:
   "I'm sorry, I don't have specific information on that. Please visit https://nextleap.app or contact the admissions team directly."
3. Be concise, friendly, and precise.
4. When citing information, reference the source section, e.g.:
   "According to the pricing section, ..."
5. Never fabricate course details, dates, prices, or instructor names.
`

// BuiltPrompt is the system instruction and user turn sent to the model.
type BuiltPrompt struct {
	SystemPrompt string `json:"system_prompt"`
	UserMessage  string `json:"user_message"`
	HasContext   bool   `json:"has_context"`
}

// SingleString merges both parts for completion APIs without roles.
func (p BuiltPrompt) SingleString(separator string) string {
	return p.SystemPrompt + separator + p.UserMessage
}

type PromptConfig struct {
	// SystemPrompt overrides DefaultSystemPrompt when set.
	SystemPrompt string
	// MaxContextChars caps the rendered context; zero or negative disables the cap.
	MaxContextChars int
}

func DefaultPromptConfig() PromptConfig {
	return PromptConfig{
		SystemPrompt:    DefaultSystemPrompt,
		MaxContextChars: DefaultMaxContextChars,
	}
}

type PromptBuilder struct {
	systemPrompt    string
	maxContextChars int
}

func NewPromptBuilder(config PromptConfig) *PromptBuilder {
	systemPrompt := config.SystemPrompt
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &PromptBuilder{
		systemPrompt:    systemPrompt,
		maxContextChars: config.MaxContextChars,
	}
}

// Build assembles the prompt for query. A nil or empty contextBlocks
// produces the no-context variant.
func (b *PromptBuilder) Build(query string, contextBlocks []string) (BuiltPrompt, error) {
	if strings.TrimSpace(query) == "" {
		return BuiltPrompt{}, fmt.Errorf("query must be a non-empty string: %w", retrieval.ErrInvalidQuery)
	}

	hasContext := len(contextBlocks) > 0
	var userMessage string
	if hasContext {
		userMessage = fmt.Sprintf(
			"CONTEXT BLOCKS (retrieved from the NextLeap knowledge base):\n%s\n\nUSER QUESTION: %s",
			b.formatContext(contextBlocks),
			strings.TrimSpace(query),
		)
	} else {
		userMessage = fmt.Sprintf(
			"No relevant context was found in the knowledge base.\n\nUSER QUESTION: %s",
			strings.TrimSpace(query),
		)
	}

	return BuiltPrompt{
		SystemPrompt: b.systemPrompt,
		UserMessage:  userMessage,
		HasContext:   hasContext,
	}, nil
}

// formatContext numbers the blocks and truncates the joined text by character count.
func (b *PromptBuilder) formatContext(blocks []string) string {
	rendered := make([]string, len(blocks))
	for i, block := range blocks {
		rendered[i] = fmt.Sprintf("[Block %d]\n%s", i+1, strings.TrimSpace(block))
	}
	context := strings.Join(rendered, "\n\n")

	if b.maxContextChars > 0 {
		runes := []rune(context)
		if len(runes) > b.maxContextChars {
			context = string(runes[:b.maxContextChars]) + TruncationMarker
		}
	}
	return context
}
