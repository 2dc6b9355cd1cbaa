package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ayash-Bera/coursebot/internal/chat"
	"github.com/Ayash-Bera/coursebot/internal/database"
	"github.com/Ayash-Bera/coursebot/internal/generation"
	"github.com/Ayash-Bera/coursebot/internal/models"
	"github.com/Ayash-Bera/coursebot/internal/repository"
	"github.com/Ayash-Bera/coursebot/internal/retrieval"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

var (
	_ RetrievalCache = (*database.Cache)(nil)
	_ StatsCache     = (*database.Cache)(nil)
)

// Cache fakes

type fakeCache struct {
	entries map[string][]database.CachedChunk
	getErr  error
	setErr  error
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]database.CachedChunk)}
}

func (c *fakeCache) GetCachedRetrieval(ctx context.Context, query string, k int) ([]database.CachedChunk, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	chunks, ok := c.entries[database.RetrievalKey(query, k)]
	if !ok {
		return nil, database.ErrCacheMiss
	}
	return chunks, nil
}

func (c *fakeCache) CacheRetrieval(ctx context.Context, query string, k int, chunks []database.CachedChunk, expiration time.Duration) error {
	c.sets++
	if c.setErr != nil {
		return c.setErr
	}
	c.entries[database.RetrievalKey(query, k)] = chunks
	return nil
}

type countingSearcher struct {
	chunks []retrieval.ScoredChunk
	err    error
	calls  int
}

func (s *countingSearcher) SimilaritySearchWithScore(ctx context.Context, query string, k int) ([]retrieval.ScoredChunk, error) {
	s.calls++
	return s.chunks, s.err
}

func feeChunks() []retrieval.ScoredChunk {
	return []retrieval.ScoredChunk{
		{Chunk: retrieval.NewTextChunk("Fee is INR 36,999", map[string]string{"section_type": "pricing"}), Score: 0.9},
	}
}

func TestCachedSearcher_MissThenHit(t *testing.T) {
	next := &countingSearcher{chunks: feeChunks()}
	cache := newFakeCache()
	s := NewCachedSearcher(next, cache, time.Minute, testLogger())

	first, err := s.SimilaritySearchWithScore(context.Background(), "fee?", 5)
	require.NoError(t, err)
	second, err := s.SimilaritySearchWithScore(context.Background(), "fee?", 5)
	require.NoError(t, err)

	assert.Equal(t, 1, next.calls)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].Chunk.Content(), second[0].Chunk.Content())
	assert.Equal(t, 0.9, second[0].Score)
	assert.Equal(t, "pricing", second[0].Chunk.Metadata()["section_type"])
}

func TestCachedSearcher_CacheErrorsAreBypassed(t *testing.T) {
	next := &countingSearcher{chunks: feeChunks()}
	cache := newFakeCache()
	cache.getErr = errors.New("redis down")
	cache.setErr = errors.New("redis down")
	s := NewCachedSearcher(next, cache, time.Minute, testLogger())

	chunks, err := s.SimilaritySearchWithScore(context.Background(), "fee?", 5)
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
	assert.Equal(t, 1, next.calls)
}

func TestCachedSearcher_EmptyAndFailedResultsNotCached(t *testing.T) {
	cache := newFakeCache()

	empty := NewCachedSearcher(&countingSearcher{}, cache, time.Minute, testLogger())
	_, err := empty.SimilaritySearchWithScore(context.Background(), "nothing", 5)
	require.NoError(t, err)
	assert.Equal(t, 0, cache.sets)

	failing := NewCachedSearcher(&countingSearcher{err: errors.New("backend down")}, cache, time.Minute, testLogger())
	_, err = failing.SimilaritySearchWithScore(context.Background(), "fee?", 5)
	assert.Error(t, err)
	assert.Equal(t, 0, cache.sets)
}

// Chat service fakes

type fixedRetriever struct{}

func (fixedRetriever) Run(ctx context.Context, rawQuery string) retrieval.PipelineOutput {
	return retrieval.PipelineOutput{
		OriginalQuery: rawQuery,
		CleanedQuery:  strings.ToLower(strings.Join(strings.Fields(rawQuery), " ")),
		Results: []retrieval.Result{
			{Content: "Fee is INR 36,999", Rank: 1, Metadata: map[string]string{"section_type": "pricing"}},
			{Content: "EMI options available", Rank: 2, Metadata: map[string]string{"section_type": "pricing"}},
		},
		ContextString: "Fee is INR 36,999",
	}
}

type fixedAnswerer struct{ answer string }

func (a fixedAnswerer) AnswerFromPipeline(ctx context.Context, out retrieval.PipelineOutput) generation.Response {
	return generation.Response{Query: out.CleanedQuery, Answer: a.answer, Success: true}
}

type fakeChatLogs struct {
	mu     sync.Mutex
	logs   []*models.ChatLog
	nextID uint
}

func (f *fakeChatLogs) Create(log *models.ChatLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	log.ID = f.nextID
	f.logs = append(f.logs, log)
	return nil
}

func (f *fakeChatLogs) GetByID(id uint) (*models.ChatLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.logs {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, errors.New("record not found")
}

func (f *fakeChatLogs) GetRecent(limit int) ([]models.ChatLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ChatLog
	for i := len(f.logs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *f.logs[i])
	}
	return out, nil
}

func (f *fakeChatLogs) CountFallbacks(since time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, l := range f.logs {
		if l.IsFallback && !l.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

type fakeFeedback struct{ stored []*models.UserFeedback }

func (f *fakeFeedback) Create(feedback *models.UserFeedback) error {
	f.stored = append(f.stored, feedback)
	return nil
}

func (f *fakeFeedback) GetByType(feedbackType string) ([]models.UserFeedback, error) {
	var out []models.UserFeedback
	for _, fb := range f.stored {
		if fb.FeedbackType == feedbackType {
			out = append(out, *fb)
		}
	}
	return out, nil
}

func (f *fakeFeedback) GetRecentFeedback(limit int) ([]models.UserFeedback, error) {
	var out []models.UserFeedback
	for i := len(f.stored) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *f.stored[i])
	}
	return out, nil
}

type fakePopular struct {
	mu      sync.Mutex
	counts  map[string]int
	results map[string]float64
	top     []models.PopularQuery
	prefix  string
}

func (f *fakePopular) IncrementCount(queryText string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[queryText]++
	return nil
}
func (f *fakePopular) GetTop(limit int) ([]models.PopularQuery, error) { return f.top, nil }
func (f *fakePopular) GetByPrefix(prefix string, limit int) ([]models.PopularQuery, error) {
	f.prefix = prefix
	return f.top, nil
}
func (f *fakePopular) UpdateStats(queryText string, resultsCount float64, responseTime int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.results == nil {
		f.results = make(map[string]float64)
	}
	f.results[queryText] = resultsCount
	return nil
}

func (f *fakePopular) count(q string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[q]
}

type serviceFixture struct {
	service  *ChatService
	logs     *fakeChatLogs
	feedback *fakeFeedback
	popular  *fakePopular
}

func newServiceFixture(t *testing.T, answer string) serviceFixture {
	t.Helper()
	factory := func() (*chat.Chatbot, error) {
		history, err := chat.NewHistory(chat.DefaultMaxTurns)
		if err != nil {
			return nil, err
		}
		return chat.NewChatbot(fixedRetriever{}, fixedAnswerer{answer: answer}, nil, history, testLogger()), nil
	}
	f := serviceFixture{
		logs:     &fakeChatLogs{},
		feedback: &fakeFeedback{},
		popular:  &fakePopular{counts: make(map[string]int)},
	}
	repos := &repository.RepositoryManager{
		ChatLog:      f.logs,
		UserFeedback: f.feedback,
		PopularQuery: f.popular,
	}
	f.service = NewChatService(chat.NewSessionStore(factory, time.Minute, testLogger()), repos, testLogger())
	return f
}

func TestChatService_ChatLogsTurn(t *testing.T) {
	f := newServiceFixture(t, "The fee is INR 36,999.")

	result, err := f.service.Chat(context.Background(), "", "What is the  FEE?", TurnMeta{UserAgent: "test"})
	require.NoError(t, err)
	f.service.Wait(time.Second)

	assert.NotEmpty(t, result.SessionID)
	assert.True(t, result.Reply.Success)
	assert.Equal(t, uint(1), result.ChatLogID)

	require.Len(t, f.logs.logs, 1)
	assert.Equal(t, result.SessionID, f.logs.logs[0].SessionID)
	assert.Equal(t, "test", f.logs.logs[0].UserAgent)
	assert.Equal(t, "what is the fee?", f.logs.logs[0].CleanedQuery)
	// Two pricing results collapse into one citation label.
	assert.Equal(t, []string{"Pricing"}, []string(f.logs.logs[0].Citations))
	assert.Equal(t, 2, f.logs.logs[0].ResultsCount)
	assert.Equal(t, 1, f.popular.count("what is the fee?"))
	f.popular.mu.Lock()
	assert.Equal(t, float64(2), f.popular.results["what is the fee?"])
	f.popular.mu.Unlock()
}

func TestChatService_FallbackNotCountedAsPopular(t *testing.T) {
	f := newServiceFixture(t, "I'm sorry, I don't have that information.")

	result, err := f.service.Chat(context.Background(), "", "Who is the CEO?", TurnMeta{})
	require.NoError(t, err)
	f.service.Wait(time.Second)

	assert.True(t, result.Reply.IsFallback)
	assert.Len(t, f.logs.logs, 1)
	assert.Equal(t, 0, f.popular.count("who is the ceo?"))
}

func TestChatService_SessionContinuity(t *testing.T) {
	f := newServiceFixture(t, "The fee is INR 36,999.")
	ctx := context.Background()

	first, err := f.service.Chat(ctx, "", "What is the fee?", TurnMeta{})
	require.NoError(t, err)
	_, err = f.service.Chat(ctx, first.SessionID, "Any EMI options?", TurnMeta{})
	require.NoError(t, err)
	f.service.Wait(time.Second)

	turns, promptCtx, err := f.service.History(first.SessionID, 10)
	require.NoError(t, err)
	assert.Len(t, turns, 2)
	assert.Contains(t, promptCtx, "Any EMI options?")

	require.NoError(t, f.service.ClearHistory(first.SessionID))
	turns, _, err = f.service.History(first.SessionID, 10)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestChatService_UnknownSession(t *testing.T) {
	f := newServiceFixture(t, "x")

	assert.ErrorIs(t, f.service.ClearHistory("0b7c2b4e-0000-4000-8000-000000000000"), ErrSessionNotFound)
	_, _, err := f.service.History("missing", 3)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestChatService_SubmitFeedback(t *testing.T) {
	f := newServiceFixture(t, "The fee is INR 36,999.")
	result, err := f.service.Chat(context.Background(), "", "What is the fee?", TurnMeta{})
	require.NoError(t, err)
	f.service.Wait(time.Second)

	fb, err := f.service.SubmitFeedback(models.FeedbackRequest{
		ChatLogID:    result.ChatLogID,
		FeedbackType: "helpful",
		SessionID:    result.SessionID,
	})
	require.NoError(t, err)
	assert.Equal(t, result.ChatLogID, fb.ChatLogID)
	assert.Len(t, f.feedback.stored, 1)

	_, err = f.service.SubmitFeedback(models.FeedbackRequest{ChatLogID: result.ChatLogID, FeedbackType: "meh"})
	assert.Error(t, err)

	_, err = f.service.SubmitFeedback(models.FeedbackRequest{ChatLogID: 999, FeedbackType: "helpful"})
	assert.Error(t, err)
}

func TestChatService_Suggestions(t *testing.T) {
	f := newServiceFixture(t, "x")
	f.popular.top = []models.PopularQuery{
		{QueryText: "what is the fee?", SearchCount: 3},
		{QueryText: "who are the mentors?", SearchCount: 9},
	}

	got, err := f.service.Suggestions("  WHAT ")
	require.NoError(t, err)
	assert.Equal(t, "what", f.popular.prefix)
	assert.Equal(t, []string{"who are the mentors?", "what is the fee?"}, got)

	noRepos := NewChatService(nil, nil, testLogger())
	got, err = noRepos.Suggestions("")
	require.NoError(t, err)
	assert.Empty(t, got)
}
