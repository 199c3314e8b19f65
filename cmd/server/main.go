package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/convoflow/convoflow-backend/internal/api"
	"github.com/convoflow/convoflow-backend/internal/chat"
	"github.com/convoflow/convoflow-backend/internal/config"
	"github.com/convoflow/convoflow-backend/internal/database"
	"github.com/convoflow/convoflow-backend/internal/providers"
	"github.com/convoflow/convoflow-backend/internal/providers/local"
	"github.com/convoflow/convoflow-backend/internal/providers/openai"
	"github.com/convoflow/convoflow-backend/internal/repository/postgres"
	"github.com/convoflow/convoflow-backend/internal/retrieval"
	"github.com/convoflow/convoflow-backend/internal/tokenizer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := database.Migrate(cfg.Database); err != nil {
		logrus.WithError(err).Fatal("Failed to run migrations")
	}

	app := fiber.New(fiber.Config{
		AppName:      "Convoflow Backend",
		ErrorHandler: api.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: getOrigins(),
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	sessionRepo := postgres.NewSessionRepository(db)
	turnRepo := postgres.NewTurnRepository(db)

	registry := buildProviders(cfg)
	provider := registry.Get(cfg.DefaultProvider)
	if provider == nil {
		logrus.WithField("provider", cfg.DefaultProvider).Fatal("Default provider not configured")
	}

	model := cfg.DefaultModel
	if model == "" {
		model = cfg.Providers[cfg.DefaultProvider].DefaultModel
	}

	estimator := tokenizer.New()
	trimmer := chat.NewTrimmer(estimator, cfg.Context.RequireUserFirst)
	summarizer := chat.NewSummarizer(
		provider,
		model,
		cfg.Context.SummaryMaxWords,
		time.Duration(cfg.Context.SummarizeTimeoutSeconds)*time.Second,
	)

	var retriever chat.Retriever
	if cfg.Retrieval.Enabled {
		embedder := retrieval.NewOpenAIEmbedder(
			cfg.Providers["openai"].APIKey,
			cfg.Retrieval.EmbeddingModel,
		)
		retriever = retrieval.NewStore(db, embedder)
	}

	manager := chat.NewManager(
		sessionRepo,
		turnRepo,
		provider,
		trimmer,
		summarizer,
		estimator,
		retriever,
		chat.Options{
			Model:            model,
			HistoryBudget:    cfg.Context.HistoryBudget,
			SummaryReserve:   cfg.Context.SummaryReserve,
			RetrievalTopK:    cfg.Retrieval.TopK,
			RetrievalTimeout: time.Duration(cfg.Retrieval.TimeoutSeconds) * time.Second,
			StreamTimeout:    time.Duration(cfg.Context.StreamTimeoutSeconds) * time.Second,
			SummarizeTimeout: time.Duration(cfg.Context.SummarizeTimeoutSeconds) * time.Second,
			PersistTimeout:   time.Duration(cfg.Context.PersistTimeoutSeconds) * time.Second,
		},
	)

	api.SetupRoutes(app, manager, sessionRepo, turnRepo, registry)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		logrus.WithField("addr", addr).Info("Convoflow backend starting")
		if err := app.Listen(addr); err != nil {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down")
	_ = app.Shutdown()
	// Let detached summary refreshes finish before the pool closes.
	manager.Wait()
}

func buildProviders(cfg *config.Config) *providers.Registry {
	registry := providers.NewRegistry()

	for id, pc := range cfg.Providers {
		switch pc.Type {
		case "openai":
			p, err := openai.NewProvider(id, pc)
			if err != nil {
				logrus.WithError(err).WithField("provider", id).Warn("Skipping provider")
				continue
			}
			registry.Register(id, p)
		case "openai-compatible":
			p, err := local.NewProvider(id, pc)
			if err != nil {
				logrus.WithError(err).WithField("provider", id).Warn("Skipping provider")
				continue
			}
			registry.Register(id, p)
		default:
			logrus.WithField("type", pc.Type).WithField("provider", id).Warn("Unknown provider type")
		}
	}

	return registry
}

func getOrigins() string {
	if origins := os.Getenv("CONVOFLOW_ALLOWED_ORIGINS"); origins != "" {
		return origins
	}
	return "http://localhost:5173, http://localhost:3000"
}
