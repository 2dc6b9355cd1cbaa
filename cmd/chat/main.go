// cmd/chat/main.go
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/Ayash-Bera/coursebot/internal/app"
	"github.com/Ayash-Bera/coursebot/internal/chat"
	"github.com/Ayash-Bera/coursebot/internal/config"
	"github.com/Ayash-Bera/coursebot/internal/database"
	"github.com/Ayash-Bera/coursebot/internal/knowledge"
	"github.com/Ayash-Bera/coursebot/internal/models"
	"github.com/Ayash-Bera/coursebot/internal/repository"
	"github.com/Ayash-Bera/coursebot/pkg/utils"
)

var verbose = flag.Bool("verbose", false, "Show pipeline logs")

const helpText = `Commands:
  /history [n]  show the last n turns
  /clear        forget the conversation
  /help         show this help
  exit, quit    leave`

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	logger := utils.GetLogger()
	if !*verbose {
		logger.SetLevel(logrus.WarnLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	var (
		kb     *knowledge.Service
		chunks models.CourseChunkRepository
	)
	switch cfg.Retrieval.Backend {
	case config.BackendKnowledge:
		if err := cfg.ValidateKnowledge(); err != nil {
			logger.WithError(err).Fatal("Knowledge configuration validation failed")
		}
		kb = app.NewKnowledgeService(cfg, logger)
	case config.BackendPostgres:
		dbManager, err := database.NewManager(&database.Config{
			DatabaseURL: cfg.Database.URL,
			RedisURL:    cfg.Redis.URL,
			LogLevel:    os.Getenv("LOG_LEVEL"),
		}, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to initialize database manager")
		}
		defer dbManager.Close()
		chunks = repository.NewCourseChunkRepository(dbManager.DB)
	}

	backend, err := app.NewBackend(cfg, kb, chunks, nil, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize search backend")
	}

	llmClient := app.NewLLMClient(cfg, logger)
	if !llmClient.HasCredential() {
		color.Yellow("Warning: %s is not set; answers will fail.", cfg.LLM.APIKeyEnv)
	}

	bot, err := app.NewChatbotFactory(cfg, backend, app.NewGenerator(cfg, llmClient, logger), logger)()
	if err != nil {
		logger.WithError(err).Fatal("Failed to create chatbot")
	}

	run(context.Background(), bot)
}

func run(ctx context.Context, bot *chat.Chatbot) {
	prompt := color.New(color.FgCyan, color.Bold)
	answer := color.New(color.FgGreen)
	muted := color.New(color.FgHiBlack)

	color.New(color.Bold).Println("NextLeap course assistant. Ask about courses, fees, mentors or schedules.")
	muted.Println(helpText)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		prompt.Print("\nYou: ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		input := strings.TrimSpace(scanner.Text())

		switch {
		case input == "":
			continue
		case input == "exit" || input == "quit":
			fmt.Println("Goodbye!")
			return
		case input == "/help":
			muted.Println(helpText)
			continue
		case input == "/clear":
			bot.ClearHistory()
			muted.Println("Conversation cleared.")
			continue
		case strings.HasPrefix(input, "/history"):
			n := chat.DefaultHistoryLength
			fmt.Sscanf(strings.TrimPrefix(input, "/history"), "%d", &n)
			printHistory(bot, n)
			continue
		}

		reply := bot.Chat(ctx, input)
		if !reply.Success {
			color.Red("Error: %s", reply.Error)
			continue
		}
		answer.Printf("\nAssistant: %s\n", reply.Answer)
		if reply.Error != "" {
			muted.Printf("(%s)\n", reply.Error)
		}
	}
}

func printHistory(bot *chat.Chatbot, n int) {
	turns := bot.History(n)
	if len(turns) == 0 {
		color.New(color.FgHiBlack).Println("No conversation yet.")
		return
	}
	for _, t := range turns {
		fmt.Printf("[%s] You: %s\n", t.Timestamp.Format("15:04:05"), t.Query)
		fmt.Printf("           Assistant: %s\n", t.Answer)
	}
}
