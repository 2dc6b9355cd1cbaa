package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Ayash-Bera/coursebot/internal/health"
	"github.com/Ayash-Bera/coursebot/internal/models"
)

const serviceName = "coursebot"

// HealthReporter is implemented by *health.HealthChecker.
type HealthReporter interface {
	CheckAll(ctx context.Context) health.OverallHealth
	CheckCached(ctx context.Context) (*health.OverallHealth, error)
}

type HealthHandler struct {
	checker HealthReporter
}

func NewHealthHandler(checker HealthReporter) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// HandleHealth serves the cached status when present and probes otherwise.
// ?fresh=true always probes.
func (h *HealthHandler) HandleHealth(c *gin.Context) {
	ctx := c.Request.Context()

	var overall *health.OverallHealth
	if c.Query("fresh") != "true" {
		if cached, err := h.checker.CheckCached(ctx); err == nil {
			overall = cached
		}
	}
	if overall == nil {
		fresh := h.checker.CheckAll(ctx)
		overall = &fresh
	}

	services := make(map[string]string, len(overall.Services))
	for _, s := range overall.Services {
		services[s.Name] = s.Status
	}

	code := http.StatusOK
	if overall.Status == health.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, models.HealthResponse{
		Status:    overall.Status,
		Service:   serviceName,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  services,
	})
}

// HandleLiveness reports that the process is serving requests.
func (h *HealthHandler) HandleLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}
