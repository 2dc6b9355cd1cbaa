// internal/services/chat.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Ayash-Bera/coursebot/internal/chat"
	"github.com/Ayash-Bera/coursebot/internal/models"
	"github.com/Ayash-Bera/coursebot/internal/repository"
)

// ErrSessionNotFound is returned for operations on unknown sessions.
var ErrSessionNotFound = errors.New("chat session not found")

const (
	suggestionsLimit = 5
	analyticsTimeout = 5 * time.Second
)

// TurnMeta describes the client that sent a message.
type TurnMeta struct {
	UserAgent string
	IPAddress string
}

// TurnResult is a chat reply bound to its session.
type TurnResult struct {
	SessionID string
	ChatLogID uint
	Reply     chat.Reply
}

// ChatService runs chat turns for sessions and records analytics.
// repos may be nil, in which case nothing is persisted.
type ChatService struct {
	sessions *chat.SessionStore
	repos    *repository.RepositoryManager
	logger   *logrus.Logger

	wg sync.WaitGroup
}

func NewChatService(sessions *chat.SessionStore, repos *repository.RepositoryManager, logger *logrus.Logger) *ChatService {
	return &ChatService{
		sessions: sessions,
		repos:    repos,
		logger:   logger,
	}
}

// Chat runs one turn in the given session, creating it if needed.
func (s *ChatService) Chat(ctx context.Context, sessionID, message string, meta TurnMeta) (*TurnResult, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var reply chat.Reply
	session.Do(func(bot *chat.Chatbot) {
		reply = bot.Chat(ctx, message)
	})
	elapsed := time.Since(start)

	s.logger.WithFields(logrus.Fields{
		"session_id":  session.ID,
		"success":     reply.Success,
		"is_fallback": reply.IsFallback,
		"duration_ms": elapsed.Milliseconds(),
	}).Info("Chat turn processed")

	result := &TurnResult{SessionID: session.ID, Reply: reply}
	if s.repos == nil || strings.TrimSpace(message) == "" {
		return result, nil
	}

	// The chat log is written synchronously so its id can be used for feedback.
	log := &models.ChatLog{
		SessionID:      session.ID,
		QueryText:      message,
		CleanedQuery:   reply.CleanedQuery,
		Answer:         reply.Answer,
		Citations:      models.StringArray(reply.Citations),
		IsFallback:     reply.IsFallback,
		Success:        reply.Success,
		ErrorMessage:   reply.Error,
		ResultsCount:   reply.ResultsCount,
		ResponseTimeMs: int(elapsed.Milliseconds()),
		UserAgent:      meta.UserAgent,
		IPAddress:      meta.IPAddress,
	}
	if err := s.repos.ChatLog.Create(log); err != nil {
		s.logger.WithError(err).Warn("Failed to store chat log")
	} else {
		result.ChatLogID = log.ID
	}

	if reply.Success && !reply.IsFallback {
		s.recordPopularQuery(message, reply.ResultsCount, int(elapsed.Milliseconds()))
	}
	return result, nil
}

func (s *ChatService) recordPopularQuery(query string, resultsCount, responseTimeMs int) {
	normalized := strings.ToLower(strings.Join(strings.Fields(query), " "))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if err := s.repos.PopularQuery.IncrementCount(normalized); err != nil {
			s.logger.WithError(err).Warn("Failed to update popular query count")
			return
		}
		if err := s.repos.PopularQuery.UpdateStats(normalized, float64(resultsCount), responseTimeMs); err != nil {
			s.logger.WithError(err).Warn("Failed to update popular query stats")
		}
	}()
}

// Wait blocks until pending analytics writes finish or the timeout elapses.
func (s *ChatService) Wait(timeout time.Duration) {
	if timeout <= 0 {
		timeout = analyticsTimeout
	}
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		s.logger.Warn("Timed out waiting for analytics writes")
	}
}

// ClearHistory wipes the conversation history of an existing session.
func (s *ChatService) ClearHistory(sessionID string) error {
	session, ok := s.sessions.Lookup(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	session.Do(func(bot *chat.Chatbot) {
		bot.ClearHistory()
	})
	return nil
}

// History returns the last n turns of a session and their prompt rendering.
func (s *ChatService) History(sessionID string, n int) ([]chat.Turn, string, error) {
	session, ok := s.sessions.Lookup(sessionID)
	if !ok {
		return nil, "", ErrSessionNotFound
	}
	var (
		turns     []chat.Turn
		promptCtx string
	)
	session.Do(func(bot *chat.Chatbot) {
		turns = bot.History(n)
		promptCtx = bot.PromptContext(n)
	})
	return turns, promptCtx, nil
}

// SubmitFeedback stores user feedback for a logged answer.
func (s *ChatService) SubmitFeedback(req models.FeedbackRequest) (*models.UserFeedback, error) {
	if !models.IsValidFeedbackType(req.FeedbackType) {
		return nil, fmt.Errorf("invalid feedback type: %s", req.FeedbackType)
	}
	if s.repos == nil {
		return nil, fmt.Errorf("feedback storage is not configured")
	}
	if _, err := s.repos.ChatLog.GetByID(req.ChatLogID); err != nil {
		return nil, fmt.Errorf("chat log %d not found: %w", req.ChatLogID, err)
	}

	feedback := &models.UserFeedback{
		ChatLogID:    req.ChatLogID,
		FeedbackType: req.FeedbackType,
		FeedbackText: req.FeedbackText,
		SessionID:    req.SessionID,
	}
	if err := s.repos.UserFeedback.Create(feedback); err != nil {
		return nil, fmt.Errorf("failed to store feedback: %w", err)
	}
	return feedback, nil
}

// Suggestions returns popular past questions starting with prefix, or the
// overall most popular ones when prefix is empty.
func (s *ChatService) Suggestions(prefix string) ([]string, error) {
	if s.repos == nil {
		return []string{}, nil
	}

	prefix = strings.ToLower(strings.TrimSpace(prefix))
	var (
		queries []models.PopularQuery
		err     error
	)
	if prefix == "" {
		queries, err = s.repos.PopularQuery.GetTop(suggestionsLimit)
	} else {
		queries, err = s.repos.PopularQuery.GetByPrefix(prefix, suggestionsLimit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load suggestions: %w", err)
	}

	sort.SliceStable(queries, func(i, j int) bool {
		return queries[i].SearchCount > queries[j].SearchCount
	})
	out := make([]string, 0, len(queries))
	for _, q := range queries {
		out = append(out, q.QueryText)
	}
	return out, nil
}
