// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/Ayash-Bera/coursebot/internal/api"
	"github.com/Ayash-Bera/coursebot/internal/app"
	"github.com/Ayash-Bera/coursebot/internal/chat"
	"github.com/Ayash-Bera/coursebot/internal/config"
	"github.com/Ayash-Bera/coursebot/internal/database"
	"github.com/Ayash-Bera/coursebot/internal/health"
	"github.com/Ayash-Bera/coursebot/internal/knowledge"
	"github.com/Ayash-Bera/coursebot/internal/middleware"
	"github.com/Ayash-Bera/coursebot/internal/migration"
	"github.com/Ayash-Bera/coursebot/internal/repository"
	"github.com/Ayash-Bera/coursebot/internal/services"
	"github.com/Ayash-Bera/coursebot/pkg/utils"
)

var (
	migrationsPath = flag.String("migrations", "migrations", "Directory with SQL migrations")
	skipMigrations = flag.Bool("skip-migrations", false, "Do not run database migrations on startup")
	healthInterval = flag.Duration("health-interval", time.Minute, "Interval between background health checks")
)

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	logger := utils.GetLogger()
	logger.Info("Starting course assistant server...")

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	dbManager, err := database.NewManager(&database.Config{
		DatabaseURL: cfg.Database.URL,
		RedisURL:    cfg.Redis.URL,
		LogLevel:    os.Getenv("LOG_LEVEL"),
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database manager")
	}
	defer dbManager.Close()

	if !*skipMigrations {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		err := migration.NewRunner(dbManager, logger).RunMigrations(ctx, *migrationsPath)
		cancel()
		if err != nil {
			logger.WithError(err).Fatal("Failed to run migrations")
		}
	}

	repos := repository.NewRepositoryManager(dbManager.DB)
	cache := database.NewCache(dbManager.Redis, logger)

	var kb *knowledge.Service
	if cfg.Retrieval.Backend == config.BackendKnowledge {
		if err := cfg.ValidateKnowledge(); err != nil {
			logger.WithError(err).Fatal("Knowledge configuration validation failed")
		}
		kb = app.NewKnowledgeService(cfg, logger)
	}

	backend, err := app.NewBackend(cfg, kb, repos.CourseChunk, cache, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize search backend")
	}

	llmClient := app.NewLLMClient(cfg, logger)
	if !llmClient.HasCredential() {
		logger.WithField("env", cfg.LLM.APIKeyEnv).Warn("LLM API key is not set, answers will fail until it is")
	}
	generator := app.NewGenerator(cfg, llmClient, logger)

	sessions := chat.NewSessionStore(app.NewChatbotFactory(cfg, backend, generator, logger), cfg.Chat.SessionTTL, logger)
	chatService := services.NewChatService(sessions, repos, logger)

	checker := health.NewHealthChecker(repos.SystemHealth, cache, logger)
	checker.Register("postgresql", dbManager.PingDatabase)
	checker.Register("redis", dbManager.PingRedis)
	if kb != nil {
		checker.Register("knowledge", kb.Ping)
	}
	checker.Register("llm", func(ctx context.Context) error {
		if !llmClient.HasCredential() {
			return fmt.Errorf("%s is not set: %w", cfg.LLM.APIKeyEnv, health.ErrDegraded)
		}
		return nil
	})

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	sessions.StartJanitor(ctx, time.Minute)
	go checker.PeriodicHealthCheck(ctx, *healthInterval)

	rateLimiter := middleware.NewRateLimiter(cfg.Server.RateLimit)
	rateLimiter.StartCleanup(time.Minute)
	defer rateLimiter.Stop()

	router := api.NewRouter(api.RouterConfig{
		Chat:         chatService,
		Health:       checker,
		Stats:        services.NewStatsService(repos, cache, logger),
		RateLimiter:  rateLimiter,
		AllowOrigins: cfg.Server.AllowOrigins,
		Logger:       logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"port":    cfg.Server.Port,
			"backend": backend.Capability().String(),
			"model":   llmClient.Model(),
		}).Info("HTTP server listening")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	chatService.Wait(5 * time.Second)

	logger.Info("Server stopped")
}
