package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"oairag/internal/api"
	"oairag/internal/config"
	"oairag/internal/ingest"
	"oairag/internal/logging"
	"oairag/internal/providers"
	"oairag/internal/rag"
	"oairag/internal/storage"
	"oairag/internal/summary"
	"oairag/internal/vector"
	"oairag/internal/workflows"

	"github.com/joho/godotenv"
	tclient "go.temporal.io/sdk/client"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := storage.Migrate(startCtx, cfg.PostgresURL); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}
	db, err := storage.NewDB(startCtx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer db.Close()

	pm, err := providers.NewManager(cfg)
	if err != nil {
		logger.Fatal("build providers", zap.Error(err))
	}
	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		logger.Fatal("dial temporal", zap.Error(err))
	}
	defer tc.Close()

	docs := storage.NewDocumentRepo(db)
	collections := storage.NewCollectionRepo(db)
	chunks := storage.NewChunkRepo(db)
	audit := storage.NewLLMAuditRepo(db)
	dispatcher := workflows.NewDispatcher(tc, cfg)

	srv := api.NewServer(cfg, api.Deps{
		Documents:   docs,
		Collections: collections,
		Uploads:     ingest.NewSubmitter(cfg, docs, collections, dispatcher, logger.Named("ingest")),
		Chat:        rag.NewEngine(cfg, collections, vector.NewSearcher(db.Pool), pm.PrimaryEmbedder(), pm.PrimaryLLM(), audit, logger.Named("rag")),
		Summaries:   summary.NewService(cfg, docs, chunks, pm.PrimaryLLM(), audit, dispatcher, logger.Named("summary")),
		Progress:    dispatcher,
	}, logger.Named("http"))

	httpSrv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("oairag api listening",
		zap.String("addr", cfg.APIAddr),
		zap.String("llm_providers", cfg.LLMProviders),
		zap.String("embed_providers", cfg.EmbedProviders))
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("serve", zap.Error(err))
	}
}
