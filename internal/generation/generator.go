package generation

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Ayash-Bera/coursebot/internal/llm"
	"github.com/Ayash-Bera/coursebot/internal/retrieval"
)

const (
	emptyQueryError      = "Cannot generate a response for an empty query."
	noContextError       = "No relevant context found."
	retrievalErrorPrefix = "Phase 3 error: "
)

// TextGenerator is satisfied by *llm.Client.
type TextGenerator interface {
	Generate(ctx context.Context, systemPrompt, userMessage string) llm.Response
}

// Response is the outcome of one generation cycle.
type Response struct {
	Query       string        `json:"query"`
	Answer      string        `json:"answer"`
	LLMResponse *llm.Response `json:"llm_response,omitempty"`
	Prompt      *BuiltPrompt  `json:"prompt,omitempty"`
	Success     bool          `json:"success"`
	Error       string        `json:"error,omitempty"`
}

// Generator builds prompts and sends them to the completion service.
type Generator struct {
	llm     TextGenerator
	prompts *PromptBuilder
	logger  *logrus.Logger
}

func NewGenerator(client TextGenerator, prompts *PromptBuilder, logger *logrus.Logger) *Generator {
	if prompts == nil {
		prompts = NewPromptBuilder(DefaultPromptConfig())
	}
	return &Generator{
		llm:     client,
		prompts: prompts,
		logger:  logger,
	}
}

// Answer generates a grounded answer for query from contextBlocks.
func (g *Generator) Answer(ctx context.Context, query string, contextBlocks []string) Response {
	if strings.TrimSpace(query) == "" {
		return Response{Query: query, Error: emptyQueryError}
	}

	prompt, err := g.prompts.Build(query, contextBlocks)
	if err != nil {
		g.logger.WithError(err).Error("Prompt construction failed")
		return Response{Query: query, Error: "Prompt construction error: " + err.Error()}
	}

	llmResp := g.llm.Generate(ctx, prompt.SystemPrompt, prompt.UserMessage)
	if !llmResp.Success {
		g.logger.WithFields(logrus.Fields{
			"attempts": llmResp.Attempts,
			"error":    llmResp.Error,
		}).Error("LLM call failed")
		return Response{
			Query:       query,
			LLMResponse: &llmResp,
			Prompt:      &prompt,
			Error:       llmResp.Error,
		}
	}

	g.logger.WithFields(logrus.Fields{
		"query":       truncate(query, 50),
		"attempts":    llmResp.Attempts,
		"has_context": prompt.HasContext,
	}).Info("Generated response")

	return Response{
		Query:       query,
		Answer:      llmResp.Text,
		LLMResponse: &llmResp,
		Prompt:      &prompt,
		Success:     true,
	}
}

// AnswerFromPipeline forwards retrieval failures without calling the LLM,
// otherwise answers from the pipeline's context blocks.
func (g *Generator) AnswerFromPipeline(ctx context.Context, out retrieval.PipelineOutput) Response {
	if !out.Success() {
		msg := noContextError
		if out.Error != "" {
			msg = retrievalErrorPrefix + out.Error
		}
		return Response{Query: out.OriginalQuery, Error: msg}
	}

	separator := out.Separator
	if separator == "" {
		separator = retrieval.DefaultContextSeparator
	}

	var blocks []string
	for _, block := range strings.Split(out.ContextString, separator) {
		if trimmed := strings.TrimSpace(block); trimmed != "" {
			blocks = append(blocks, trimmed)
		}
	}

	query := out.CleanedQuery
	if query == "" {
		query = out.OriginalQuery
	}
	return g.Answer(ctx, query, blocks)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
