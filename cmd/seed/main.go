// cmd/seed/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/Ayash-Bera/coursebot/internal/app"
	"github.com/Ayash-Bera/coursebot/internal/config"
	"github.com/Ayash-Bera/coursebot/internal/database"
	"github.com/Ayash-Bera/coursebot/internal/migration"
	"github.com/Ayash-Bera/coursebot/internal/repository"
	"github.com/Ayash-Bera/coursebot/internal/seeder"
	"github.com/Ayash-Bera/coursebot/pkg/utils"
)

var (
	dryRun         = flag.Bool("dry-run", false, "Process and chunk course data without uploading")
	reset          = flag.Bool("reset", false, "Delete previously seeded chunks for each course before uploading")
	source         = flag.String("source", "", "Course data file or URL (defaults to seed.source)")
	skipKnowledge  = flag.Bool("skip-knowledge", false, "Only store chunks in Postgres")
	migrationsPath = flag.String("migrations", "migrations", "Directory with SQL migrations")
	verbose        = flag.Bool("verbose", false, "Enable verbose logging")
)

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	logger := utils.GetLogger()
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	logger.Info("Starting course content seeder...")

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if *source == "" {
		*source = cfg.Seed.Source
	}

	chunker, err := seeder.NewChunker(cfg.Seed.ChunkSize, cfg.Seed.ChunkOverlap)
	if err != nil {
		logger.WithError(err).Fatal("Invalid chunking configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		index seeder.Indexer
		store seeder.ChunkStore
		cache seeder.CacheInvalidator
	)

	if !*dryRun {
		if !*skipKnowledge {
			if err := cfg.ValidateKnowledge(); err != nil {
				logger.WithError(err).Fatal("Knowledge configuration validation failed")
			}
			index = app.NewKnowledgeService(cfg, logger)
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

		if err := migration.NewRunner(dbManager, logger).RunMigrations(ctx, *migrationsPath); err != nil {
			logger.WithError(err).Fatal("Failed to run migrations")
		}

		store = repository.NewRepositoryManager(dbManager.DB).CourseChunk
		cache = database.NewCache(dbManager.Redis, logger)
	}

	s := seeder.NewSeeder(seeder.NewFetcher(cfg.Knowledge.Timeout, logger), chunker, index, store, cache, logger)
	stats, err := s.Seed(ctx, *source, seeder.Options{DryRun: *dryRun, Reset: *reset})
	if err != nil {
		logger.WithError(err).Fatal("Content seeding failed")
	}

	if stats.Failed > 0 {
		logger.WithField("failed", stats.Failed).Warn("Some chunks could not be stored")
	}
	logger.Info("Content seeding completed successfully!")
}
