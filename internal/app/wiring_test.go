package app

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ayash-Bera/coursebot/internal/config"
	"github.com/Ayash-Bera/coursebot/internal/generation"
	"github.com/Ayash-Bera/coursebot/internal/knowledge"
	"github.com/Ayash-Bera/coursebot/internal/models"
	"github.com/Ayash-Bera/coursebot/internal/retrieval"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Retrieval.Backend = config.BackendKnowledge
	cfg.Retrieval.TopK = 3
	cfg.Retrieval.ContextSeparator = "\n==\n"
	cfg.Retrieval.CacheTTL = time.Minute
	cfg.Chat.MaxHistoryTurns = 5
	cfg.Chat.IncludeCitations = true
	cfg.Chat.HomepageURL = "https://nextleap.app"
	return cfg
}

type emptyChunks struct{}

func (emptyChunks) Upsert(chunk *models.CourseChunk) error { return nil }
func (emptyChunks) DeleteBySource(source string) error     { return nil }
func (emptyChunks) Search(ctx context.Context, query string, limit int) ([]models.CourseChunk, error) {
	return nil, nil
}

func TestNewBackend(t *testing.T) {
	cfg := testConfig()
	kb := knowledge.NewService(knowledge.NewClient("http://localhost:1", "key", time.Second, testLogger()), "", testLogger())

	backend, err := NewBackend(cfg, kb, nil, nil, testLogger())
	require.NoError(t, err)
	assert.Equal(t, retrieval.CapabilityScored, backend.Capability())

	_, err = NewBackend(cfg, nil, nil, nil, testLogger())
	assert.Error(t, err)

	cfg.Retrieval.Backend = config.BackendPostgres
	backend, err = NewBackend(cfg, nil, emptyChunks{}, nil, testLogger())
	require.NoError(t, err)
	assert.Equal(t, retrieval.CapabilityUnscored, backend.Capability())

	_, err = NewBackend(cfg, nil, nil, nil, testLogger())
	assert.Error(t, err)

	cfg.Retrieval.Backend = "chroma"
	_, err = NewBackend(cfg, kb, emptyChunks{}, nil, testLogger())
	assert.Error(t, err)
}

func TestPipelineConfig(t *testing.T) {
	cfg := testConfig()
	threshold := 0.4
	cfg.Retrieval.RelevanceThreshold = &threshold

	pc := PipelineConfig(cfg)
	assert.Equal(t, 3, pc.TopK)
	assert.Equal(t, "\n==\n", pc.ContextSeparator)
	assert.Equal(t, &threshold, pc.RelevanceThreshold)
	assert.Equal(t, retrieval.DefaultMinQueryLength, pc.MinQueryLength)
	assert.Equal(t, retrieval.DefaultMaxQueryLength, pc.MaxQueryLength)
}

type cannedAnswerer struct{}

func (cannedAnswerer) AnswerFromPipeline(ctx context.Context, out retrieval.PipelineOutput) generation.Response {
	return generation.Response{Query: out.CleanedQuery, Answer: "Please ask about the course.", Success: true}
}

func TestChatbotFactory_IndependentHistories(t *testing.T) {
	cfg := testConfig()
	cfg.Retrieval.Backend = config.BackendPostgres
	backend, err := NewBackend(cfg, nil, emptyChunks{}, nil, testLogger())
	require.NoError(t, err)

	factory := NewChatbotFactory(cfg, backend, cannedAnswerer{}, testLogger())
	first, err := factory()
	require.NoError(t, err)
	second, err := factory()
	require.NoError(t, err)

	reply := first.Chat(context.Background(), "What is the fee?")
	assert.True(t, reply.Success)
	assert.Equal(t, 1, first.TurnCount())
	assert.Equal(t, 0, second.TurnCount())

	cfg.Chat.MaxHistoryTurns = 0
	_, err = NewChatbotFactory(cfg, backend, cannedAnswerer{}, testLogger())()
	assert.Error(t, err)
}
