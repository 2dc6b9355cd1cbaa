// internal/api/handlers/chat.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Ayash-Bera/coursebot/internal/chat"
	"github.com/Ayash-Bera/coursebot/internal/models"
	"github.com/Ayash-Bera/coursebot/internal/services"
	"github.com/Ayash-Bera/coursebot/pkg/utils"
)

const (
	chatTimeout         = 60 * time.Second
	maxSuggestionPrefix = 200
)

// ChatService is implemented by *services.ChatService.
type ChatService interface {
	Chat(ctx context.Context, sessionID, message string, meta services.TurnMeta) (*services.TurnResult, error)
	ClearHistory(sessionID string) error
	History(sessionID string, n int) ([]chat.Turn, string, error)
	SubmitFeedback(req models.FeedbackRequest) (*models.UserFeedback, error)
	Suggestions(prefix string) ([]string, error)
}

type ChatHandler struct {
	chatService ChatService
	logger      *logrus.Logger
}

func NewChatHandler(chatService ChatService, logger *logrus.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		logger:      logger,
	}
}

// HandleChat answers one user message within a session.
func (h *ChatHandler) HandleChat(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Warn("Invalid chat request")
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = c.GetHeader("X-Session-ID")
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), chatTimeout)
	defer cancel()

	result, err := h.chatService.Chat(ctx, sessionID, req.Message, services.TurnMeta{
		UserAgent: c.GetHeader("User-Agent"),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		h.logger.WithError(err).Error("Chat failed")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to process message", err)
		return
	}

	reply := result.Reply
	resp := models.ChatResponse{
		SessionID:  result.SessionID,
		ChatLogID:  result.ChatLogID,
		Query:      reply.Query,
		Answer:     reply.Answer,
		Citations:  reply.Citations,
		IsFallback: reply.IsFallback,
		Success:    reply.Success,
		Error:      reply.Error,
	}
	if resp.Citations == nil {
		resp.Citations = []string{}
	}
	if reply.Turn != nil {
		resp.Timestamp = reply.Turn.Timestamp.Format(time.RFC3339)
	}

	c.Header("X-Session-ID", result.SessionID)
	utils.SuccessResponse(c, http.StatusOK, "Message processed", resp)
}

// HandleClearHistory wipes a session's conversation.
func (h *ChatHandler) HandleClearHistory(c *gin.Context) {
	var req models.ClearHistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if err := h.chatService.ClearHistory(req.SessionID); err != nil {
		h.sessionError(c, err)
		return
	}

	h.logger.WithField("session_id", req.SessionID).Info("Chat history cleared")
	utils.SuccessResponse(c, http.StatusOK, "History cleared", nil)
}

// HandleHistory returns the latest turns of a session.
func (h *ChatHandler) HandleHistory(c *gin.Context) {
	sessionID := c.Param("session_id")

	n, err := strconv.Atoi(c.DefaultQuery("n", strconv.Itoa(chat.DefaultHistoryLength)))
	if err != nil || n < 0 {
		utils.ErrorResponse(c, http.StatusBadRequest, "Parameter 'n' must be a non-negative integer", nil)
		return
	}

	turns, promptCtx, err := h.chatService.History(sessionID, n)
	if err != nil {
		h.sessionError(c, err)
		return
	}

	out := make([]models.HistoryTurn, len(turns))
	for i, t := range turns {
		out[i] = models.HistoryTurn{
			Query:      t.Query,
			Answer:     t.Answer,
			Timestamp:  t.Timestamp.Format(time.RFC3339),
			IsFallback: t.IsFallback,
		}
	}

	utils.SuccessResponse(c, http.StatusOK, "History retrieved", models.HistoryResponse{
		SessionID:     sessionID,
		Turns:         out,
		TurnCount:     len(out),
		PromptContext: promptCtx,
	})
}

// HandleFeedback records a rating for a logged answer.
func (h *ChatHandler) HandleFeedback(c *gin.Context) {
	var req models.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid feedback format", err)
		return
	}
	if !models.IsValidFeedbackType(req.FeedbackType) {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid feedback type", nil)
		return
	}
	if req.SessionID == "" {
		req.SessionID = c.GetHeader("X-Session-ID")
	}

	feedback, err := h.chatService.SubmitFeedback(req)
	if err != nil {
		h.logger.WithError(err).Error("Failed to save feedback")
		utils.ErrorResponse(c, http.StatusUnprocessableEntity, "Failed to save feedback", err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"chat_log_id":   req.ChatLogID,
		"feedback_type": req.FeedbackType,
		"session_id":    req.SessionID,
	}).Info("Feedback recorded")

	utils.SuccessResponse(c, http.StatusCreated, "Feedback recorded", feedback)
}

// HandleSuggestions returns popular questions, optionally filtered by prefix q.
func (h *ChatHandler) HandleSuggestions(c *gin.Context) {
	prefix := c.Query("q")
	if len(prefix) > maxSuggestionPrefix {
		utils.ErrorResponse(c, http.StatusBadRequest, "Query parameter 'q' is too long", nil)
		return
	}

	suggestions, err := h.chatService.Suggestions(prefix)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get suggestions")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to get suggestions", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Suggestions retrieved", models.SuggestionsResponse{
		Suggestions: suggestions,
	})
}

func (h *ChatHandler) sessionError(c *gin.Context, err error) {
	if errors.Is(err, services.ErrSessionNotFound) {
		utils.ErrorResponse(c, http.StatusNotFound, "Session not found", err)
		return
	}
	utils.ErrorResponse(c, http.StatusInternalServerError, "Session operation failed", err)
}
