// Package app builds the chat stack from configuration. It is shared by
// the HTTP server and the terminal client.
package app

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Ayash-Bera/coursebot/internal/chat"
	"github.com/Ayash-Bera/coursebot/internal/config"
	"github.com/Ayash-Bera/coursebot/internal/generation"
	"github.com/Ayash-Bera/coursebot/internal/knowledge"
	"github.com/Ayash-Bera/coursebot/internal/llm"
	"github.com/Ayash-Bera/coursebot/internal/models"
	"github.com/Ayash-Bera/coursebot/internal/repository"
	"github.com/Ayash-Bera/coursebot/internal/retrieval"
	"github.com/Ayash-Bera/coursebot/internal/services"
)

// NewKnowledgeService connects to the hosted knowledge base.
func NewKnowledgeService(cfg *config.Config, logger *logrus.Logger) *knowledge.Service {
	client := knowledge.NewClient(cfg.Knowledge.BaseURL, cfg.Knowledge.APIKey, cfg.Knowledge.Timeout, logger)
	return knowledge.NewService(client, cfg.Knowledge.Scope, logger)
}

// NewLLMClient builds the completion client. The API key is read from the
// environment variable named by llm.api_key_env on first use.
func NewLLMClient(cfg *config.Config, logger *logrus.Logger) *llm.Client {
	llmConfig := llm.DefaultConfig()
	llmConfig.Model = cfg.LLM.Model
	llmConfig.Temperature = cfg.LLM.Temperature
	llmConfig.CredentialName = cfg.LLM.APIKeyEnv
	if cfg.LLM.MaxRetries > 0 {
		llmConfig.Retry.MaxAttempts = cfg.LLM.MaxRetries
	}
	if cfg.LLM.RetryDelay > 0 {
		llmConfig.Retry.BaseDelay = cfg.LLM.RetryDelay
	}

	factory := llm.NewOpenAIFactory(cfg.LLM.BaseURL, cfg.LLM.Timeout)
	return llm.NewClient(llmConfig, llm.EnvCredential(cfg.LLM.APIKeyEnv), factory, logger)
}

// NewBackend selects the search backend named by retrieval.backend. The
// knowledge backend is scored and, when cache is set, read through it.
// The postgres backend is unscored keyword search over seeded chunks.
func NewBackend(cfg *config.Config, kb *knowledge.Service, chunks models.CourseChunkRepository, cache services.RetrievalCache, logger *logrus.Logger) (retrieval.Backend, error) {
	switch cfg.Retrieval.Backend {
	case config.BackendKnowledge:
		if kb == nil {
			return retrieval.Backend{}, fmt.Errorf("knowledge backend selected but not configured")
		}
		var searcher retrieval.ScoredSearcher = kb
		if cache != nil && cfg.Retrieval.CacheTTL > 0 {
			searcher = services.NewCachedSearcher(kb, cache, cfg.Retrieval.CacheTTL, logger)
		}
		return retrieval.ScoredBackend(searcher), nil
	case config.BackendPostgres:
		if chunks == nil {
			return retrieval.Backend{}, fmt.Errorf("postgres backend selected but no database is available")
		}
		return retrieval.UnscoredBackend(repository.NewChunkSearch(chunks)), nil
	default:
		return retrieval.Backend{}, fmt.Errorf("unknown retrieval backend %q", cfg.Retrieval.Backend)
	}
}

// NewChatbotFactory returns a factory producing chatbots that share the
// pipeline, generator and formatter but own their history.
func NewChatbotFactory(cfg *config.Config, backend retrieval.Backend, generator chat.Answerer, logger *logrus.Logger) chat.ChatbotFactory {
	pipeline := retrieval.NewPipeline(backend, PipelineConfig(cfg), logger)
	formatter := chat.NewFormatter(chat.FormatterConfig{
		IncludeCitations: cfg.Chat.IncludeCitations,
		HomepageURL:      cfg.Chat.HomepageURL,
	})

	return func() (*chat.Chatbot, error) {
		history, err := chat.NewHistory(cfg.Chat.MaxHistoryTurns)
		if err != nil {
			return nil, err
		}
		return chat.NewChatbot(pipeline, generator, formatter, history, logger), nil
	}
}

// NewGenerator builds the answer generator on top of the completion client.
func NewGenerator(cfg *config.Config, client generation.TextGenerator, logger *logrus.Logger) *generation.Generator {
	prompts := generation.NewPromptBuilder(generation.PromptConfig{
		SystemPrompt:    cfg.Prompt.SystemPrompt,
		MaxContextChars: cfg.Prompt.MaxContextChars,
	})
	return generation.NewGenerator(client, prompts, logger)
}

func PipelineConfig(cfg *config.Config) retrieval.PipelineConfig {
	pc := retrieval.DefaultPipelineConfig()
	if cfg.Retrieval.TopK > 0 {
		pc.TopK = cfg.Retrieval.TopK
	}
	pc.RelevanceThreshold = cfg.Retrieval.RelevanceThreshold
	if cfg.Retrieval.ContextSeparator != "" {
		pc.ContextSeparator = cfg.Retrieval.ContextSeparator
	}
	if cfg.Retrieval.MinQueryLength > 0 {
		pc.MinQueryLength = cfg.Retrieval.MinQueryLength
	}
	if cfg.Retrieval.MaxQueryLength > 0 {
		pc.MaxQueryLength = cfg.Retrieval.MaxQueryLength
	}
	return pc
}
