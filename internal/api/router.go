package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Ayash-Bera/coursebot/internal/api/handlers"
	"github.com/Ayash-Bera/coursebot/internal/middleware"
	"github.com/Ayash-Bera/coursebot/pkg/utils"
)

// RouterConfig holds everything the HTTP layer depends on.
type RouterConfig struct {
	Chat         handlers.ChatService
	Health       handlers.HealthReporter
	Stats        handlers.StatsProvider // optional
	RateLimiter  *middleware.RateLimiter
	AllowOrigins []string
	Logger       *logrus.Logger
}

// NewRouter wires middleware and routes into a gin engine.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.AllowOrigins))

	healthHandler := handlers.NewHealthHandler(cfg.Health)
	r.GET("/health", healthHandler.HandleHealth)
	r.GET("/health/live", healthHandler.HandleLiveness)

	chatHandler := handlers.NewChatHandler(cfg.Chat, cfg.Logger)
	v1 := r.Group("/api/v1")
	if cfg.RateLimiter != nil {
		v1.Use(cfg.RateLimiter.RateLimit())
	}
	{
		v1.POST("/chat", chatHandler.HandleChat)
		v1.POST("/chat/clear", chatHandler.HandleClearHistory)
		v1.GET("/chat/:session_id/history", chatHandler.HandleHistory)
		v1.POST("/feedback", chatHandler.HandleFeedback)
		v1.GET("/suggestions", chatHandler.HandleSuggestions)
	}
	if cfg.Stats != nil {
		v1.GET("/stats", handlers.NewStatsHandler(cfg.Stats, cfg.Logger).HandleStats)
	}

	r.NoRoute(func(c *gin.Context) {
		utils.ErrorResponse(c, http.StatusNotFound, "Route not found", nil)
	})

	return r
}
