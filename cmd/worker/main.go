package main

import (
	"context"
	"log"
	"time"

	"oairag/internal/activities"
	"oairag/internal/config"
	"oairag/internal/logging"
	"oairag/internal/storage"
	"oairag/internal/workflows"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		logger.Fatal("dial temporal", zap.Error(err))
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := storage.Migrate(ctx, cfg.PostgresURL); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer db.Close()

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     cfg.WorkerMaxActivities,
		MaxConcurrentWorkflowTaskExecutionSize: cfg.WorkerMaxWorkflows,
	})
	workflows.Register(w)
	a, err := activities.New(cfg, db, logger.Named("activities"))
	if err != nil {
		logger.Fatal("build activities", zap.Error(err))
	}
	activities.Register(w, a)

	logger.Info("oairag worker listening",
		zap.String("temporal", cfg.TemporalAddress),
		zap.String("queue", cfg.TemporalTaskQueue),
		zap.String("llm_providers", cfg.LLMProviders),
		zap.String("embed_providers", cfg.EmbedProviders))
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Fatal("worker stopped", zap.Error(err))
	}
}
