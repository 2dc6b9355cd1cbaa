package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Ayash-Bera/coursebot/internal/models"
	"github.com/Ayash-Bera/coursebot/pkg/utils"
)

// StatsProvider is implemented by *services.StatsService.
type StatsProvider interface {
	Overview(ctx context.Context) (*models.StatsResponse, error)
}

type StatsHandler struct {
	stats  StatsProvider
	logger *logrus.Logger
}

func NewStatsHandler(stats StatsProvider, logger *logrus.Logger) *StatsHandler {
	return &StatsHandler{stats: stats, logger: logger}
}

func (h *StatsHandler) HandleStats(c *gin.Context) {
	stats, err := h.stats.Overview(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to build usage stats")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to load stats", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Usage stats", stats)
}
