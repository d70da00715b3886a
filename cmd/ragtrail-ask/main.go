// ragtrail-ask answers a single question through the audited pipeline and
// prints the answer, the trace id, and the mirrored audit records: a
// one-shot walkthrough of the audit trail a run leaves behind.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/trailsec/ragtrail/internal/api/openai"
	"github.com/trailsec/ragtrail/internal/api/secureaudit"
	"github.com/trailsec/ragtrail/internal/audit"
	"github.com/trailsec/ragtrail/internal/config"
	"github.com/trailsec/ragtrail/internal/index"
	"github.com/trailsec/ragtrail/internal/pipeline"
	"github.com/trailsec/ragtrail/internal/storage"
	"github.com/trailsec/ragtrail/internal/storage/memory"
	"github.com/trailsec/ragtrail/internal/tokens"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	actor := flag.String("actor", "", "acting user recorded on audit records")
	flag.Parse()

	question := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if question == "" {
		fmt.Fprintln(os.Stderr, "usage: ragtrail-ask [flags] <question>")
		os.Exit(2)
	}

	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *actor == "" {
		*actor = cfg.Audit.Actor
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	llm := openai.NewClient(cfg.OpenAI.APIKey)
	embedder := index.NewOpenAIEmbedder(llm, cfg.OpenAI.EmbeddingModel)
	ix := index.New(embedder)

	if cfg.Index.CorpusPath == "" {
		log.Fatal("index.corpus_path is required for one-shot runs")
	}
	chunker := index.NewChunker(tokens.NewTiktokenCounter(), cfg.OpenAI.EmbeddingModel, cfg.Index.ChunkTokens)
	docs, err := index.LoadCorpus(cfg.Index.CorpusPath)
	if err != nil {
		log.Fatalf("Failed to load corpus: %v", err)
	}
	if err := index.Seed(ctx, ix, chunker, docs); err != nil {
		log.Fatalf("Failed to seed index: %v", err)
	}

	mirror := memory.New()
	sinkClient := secureaudit.NewClient(cfg.Audit.Token,
		secureaudit.WithDomain(cfg.Audit.Domain),
		secureaudit.WithConfigID(cfg.Audit.ConfigID),
	)
	sink := storage.NewMirrorSink(sinkClient, mirror, logger)

	tracer := audit.NewTracer(sink,
		audit.WithActor(*actor),
		audit.WithOrphanLogging(cfg.Audit.LogOrphans),
	)

	p := pipeline.New(
		pipeline.NewIndexRetriever(ix, cfg.Index.TopK),
		pipeline.NewOpenAIGenerator(llm, cfg.OpenAI.Model, cfg.OpenAI.Temperature, cfg.OpenAI.Candidates),
		pipeline.WithObserver(tracer),
	)

	answer, err := p.Invoke(ctx, question)
	if err != nil {
		log.Fatalf("Pipeline failed: %v", err)
	}

	fmt.Printf("Answer: %s\n", answer.Text)
	fmt.Printf("Trace:  %s\n\n", answer.TraceID)

	records, err := mirror.ListByTrace(ctx, answer.TraceID)
	if err != nil {
		log.Fatalf("Failed to read mirrored records: %v", err)
	}
	fmt.Printf("Audit trail (%d records):\n", len(records))
	for _, rec := range records {
		line, err := json.Marshal(rec.Record)
		if err != nil {
			log.Fatalf("Failed to render record: %v", err)
		}
		fmt.Printf("  %s\n", line)
	}
}
