package chat

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Ayash-Bera/coursebot/internal/generation"
	"github.com/Ayash-Bera/coursebot/internal/retrieval"
)

const (
	emptyMessageError   = "Please enter a question."
	generationFailedMsg = "Failed to generate a response."
)

// Retriever is satisfied by *retrieval.Pipeline.
type Retriever interface {
	Run(ctx context.Context, rawQuery string) retrieval.PipelineOutput
}

// Answerer is satisfied by *generation.Generator.
type Answerer interface {
	AnswerFromPipeline(ctx context.Context, out retrieval.PipelineOutput) generation.Response
}

// Reply is the result of one chat turn.
type Reply struct {
	Query        string   `json:"query"`
	CleanedQuery string   `json:"cleaned_query,omitempty"`
	Answer       string   `json:"answer"`
	Citations    []string `json:"citations"`
	ResultsCount int      `json:"results_count"`
	IsFallback   bool     `json:"is_fallback"`
	Success      bool     `json:"success"`
	Error        string   `json:"error,omitempty"`
	Turn         *Turn    `json:"turn,omitempty"`
}

// Chatbot runs retrieval, generation and formatting for a single
// conversation and records every delivered answer in its History.
type Chatbot struct {
	retriever Retriever
	answerer  Answerer
	formatter *Formatter
	history   *History
	logger    *logrus.Logger
}

// NewChatbot wires a chatbot. A nil formatter gets the default
// configuration; history must be non-nil.
func NewChatbot(retriever Retriever, answerer Answerer, formatter *Formatter, history *History, logger *logrus.Logger) *Chatbot {
	if formatter == nil {
		formatter = NewFormatter(DefaultFormatterConfig())
	}
	return &Chatbot{
		retriever: retriever,
		answerer:  answerer,
		formatter: formatter,
		history:   history,
		logger:    logger,
	}
}

// Chat processes one user message. Only a generation failure with no
// answer text is reported as unsuccessful, and in that case the history
// is left untouched.
func (c *Chatbot) Chat(ctx context.Context, userQuery string) Reply {
	if strings.TrimSpace(userQuery) == "" {
		return Reply{
			Query:     userQuery,
			Citations: []string{},
			Error:     emptyMessageError,
		}
	}

	c.logger.WithField("query", truncate(userQuery, 80)).Info("Processing user query")

	retrieved := c.retriever.Run(ctx, userQuery)
	if !retrieved.Success() {
		// The generator handles the failed bundle itself.
		c.logger.WithField("error", retrieved.Error).Warn("Retrieval failed")
	}

	generated := c.answerer.AnswerFromPipeline(ctx, retrieved)
	if !generated.Success && generated.Answer == "" {
		msg := generated.Error
		if msg == "" {
			msg = generationFailedMsg
		}
		return Reply{
			Query:        userQuery,
			CleanedQuery: retrieved.CleanedQuery,
			Citations:    []string{},
			ResultsCount: len(retrieved.Results),
			Error:        msg,
		}
	}

	formatted := c.formatter.Format(generated.Answer, retrieved.Metadata())
	turn := c.history.Add(userQuery, formatted.Answer, formatted.IsFallback)

	c.logger.WithFields(logrus.Fields{
		"fallback":  formatted.IsFallback,
		"citations": formatted.Citations,
	}).Info("Chat turn complete")

	return Reply{
		Query:        userQuery,
		CleanedQuery: retrieved.CleanedQuery,
		Answer:       formatted.Answer,
		Citations:    formatted.Citations,
		ResultsCount: len(retrieved.Results),
		IsFallback:   formatted.IsFallback,
		Success:      true,
		Error:        generated.Error,
		Turn:         &turn,
	}
}

// History returns the last n turns, oldest first.
func (c *Chatbot) History(n int) []Turn {
	return c.history.Recent(n)
}

// PromptContext renders the last n turns for display or prompting.
func (c *Chatbot) PromptContext(n int) string {
	return c.history.PromptContext(n)
}

func (c *Chatbot) ClearHistory() {
	c.history.Clear()
	c.logger.Info("Conversation history cleared")
}

func (c *Chatbot) TurnCount() int {
	return c.history.TurnCount()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
