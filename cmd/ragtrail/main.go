package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/trailsec/ragtrail/internal/api/openai"
	"github.com/trailsec/ragtrail/internal/api/secureaudit"
	"github.com/trailsec/ragtrail/internal/config"
	"github.com/trailsec/ragtrail/internal/index"
	"github.com/trailsec/ragtrail/internal/pipeline"
	"github.com/trailsec/ragtrail/internal/server"
	"github.com/trailsec/ragtrail/internal/storage"
	"github.com/trailsec/ragtrail/internal/storage/memory"
	"github.com/trailsec/ragtrail/internal/storage/sqlite"
	"github.com/trailsec/ragtrail/internal/telemetry"
	"github.com/trailsec/ragtrail/internal/tokens"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	shutdown, err := telemetry.InitTracer("ragtrail", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	llm := openai.NewClient(cfg.OpenAI.APIKey)
	embedder := index.NewOpenAIEmbedder(llm, cfg.OpenAI.EmbeddingModel)
	ix := index.New(embedder)

	if cfg.Index.CorpusPath != "" {
		chunker := index.NewChunker(tokens.NewTiktokenCounter(), cfg.OpenAI.EmbeddingModel, cfg.Index.ChunkTokens)
		docs, err := index.LoadCorpus(cfg.Index.CorpusPath)
		if err != nil {
			log.Fatalf("Failed to load corpus: %v", err)
		}
		seedCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		if err := index.Seed(seedCtx, ix, chunker, docs); err != nil {
			cancel()
			log.Fatalf("Failed to seed index: %v", err)
		}
		cancel()
		logger.Info("index seeded",
			slog.Int("documents", len(docs)),
			slog.Int("chunks", ix.Len()),
		)
	}

	var mirror storage.RecordStore
	if cfg.Store.Path != "" {
		mirror, err = sqlite.New(cfg.Store.Path)
		if err != nil {
			log.Fatalf("Failed to open mirror store: %v", err)
		}
	} else {
		mirror = memory.New()
	}
	defer func() {
		if err := mirror.Close(); err != nil {
			logger.Error("failed to close mirror store", slog.String("error", err.Error()))
		}
	}()

	sinkClient := secureaudit.NewClient(cfg.Audit.Token,
		secureaudit.WithDomain(cfg.Audit.Domain),
		secureaudit.WithConfigID(cfg.Audit.ConfigID),
	)
	sink := storage.NewMirrorSink(sinkClient, mirror, logger)

	retriever := pipeline.NewIndexRetriever(ix, cfg.Index.TopK)
	generator := pipeline.NewOpenAIGenerator(llm, cfg.OpenAI.Model, cfg.OpenAI.Temperature, cfg.OpenAI.Candidates)

	srv := server.New(cfg.Server.Port, logger)
	askHandler := server.NewAskHandler(retriever, generator, sink, cfg.Audit.LogOrphans)
	runsHandler := server.NewRunsHandler(mirror)
	srv.Router.Post("/v1/ask", askHandler.HandleAsk)
	srv.Router.Get("/v1/runs/{traceID}", runsHandler.HandleGetRun)
	srv.Router.Get("/healthz", server.HandleHealthz)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("Server failed: %v", err)
	case <-sigChan:
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("server shutdown complete")
}
