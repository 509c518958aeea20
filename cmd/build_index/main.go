package main

import (
	"context"
	"errors"
	"flag"
	"os"

	"clinical-assistant-be/internal/bootstrap"
	"clinical-assistant-be/internal/config"
	"clinical-assistant-be/internal/entity"
	"clinical-assistant-be/internal/pkg/logger"
	"clinical-assistant-be/internal/repository/implementation"
	"clinical-assistant-be/pkg/corpus"
	"clinical-assistant-be/pkg/database"
	"clinical-assistant-be/pkg/events"
	pktNats "clinical-assistant-be/pkg/nats"

	"github.com/fatih/color"
)

var errMissingDSN = errors.New("DB_CONNECTION_STRING is not set")

func main() {
	cfg := config.Load()

	corpusPath := flag.String("corpus", cfg.Corpus.JSONPath, "raw case corpus (JSON)")
	indexPath := flag.String("index", cfg.Corpus.IndexPath, "vector index output file")
	metaPath := flag.String("meta", cfg.Corpus.MetadataPath, "metadata output file (msgpack)")
	syncDB := flag.Bool("sync-db", false, "mirror embeddings into the case_embeddings table")
	debugQuery := flag.String("debug", "", "run a test search after building")
	flag.Parse()

	ctx := context.Background()
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	defer sysLogger.Sync()

	provider, err := bootstrap.NewEmbeddingProvider(cfg)
	if err != nil {
		color.Red("Embedding provider: %v", err)
		os.Exit(1)
	}

	color.Cyan("Building case index from %s with %s", *corpusPath, provider.Name())
	index := corpus.NewIndex(provider, sysLogger)
	if err := index.BuildFromFile(ctx, *corpusPath); err != nil {
		color.Red("Build failed: %v", err)
		os.Exit(1)
	}
	if err := index.Save(*indexPath, *metaPath); err != nil {
		color.Red("Save failed: %v", err)
		os.Exit(1)
	}
	stats := index.Stats()
	color.Green("Saved %d cases (dim %d) to %s and %s", stats.TotalCases, stats.Dimension, *indexPath, *metaPath)

	if *syncDB {
		if err := mirrorToDatabase(ctx, cfg, index); err != nil {
			color.Red("Database sync failed: %v", err)
			os.Exit(1)
		}
		color.Green("Mirrored %d embeddings into case_embeddings", stats.TotalCases)
	}

	announce(ctx, cfg, *indexPath, *metaPath, stats.TotalCases, sysLogger)

	if *debugQuery != "" {
		printDebugSearch(ctx, index, *debugQuery, cfg.Corpus.MaxResults, cfg.Corpus.SimilarityThreshold)
	}
}

func mirrorToDatabase(ctx context.Context, cfg *config.Config, index *corpus.Index) error {
	if cfg.Database.Connection == "" {
		return errMissingDSN
	}
	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, false)
	if err != nil {
		return err
	}

	records := index.Records()
	model := index.Stats().Model
	rows := make([]*entity.CaseEmbedding, len(records))
	for i := range records {
		rows[i] = &entity.CaseEmbedding{
			CaseId:    records[i].CaseID,
			Position:  i,
			Model:     model,
			Document:  corpus.Blob(&records[i]),
			Embedding: records[i].Embedding,
		}
	}
	return implementation.NewCaseEmbeddingRepository(db).ReplaceAll(ctx, rows)
}

// announce lets running servers hot-swap the new files. Best effort.
func announce(ctx context.Context, cfg *config.Config, indexPath, metaPath string, cases int, sysLogger logger.ILogger) {
	if cfg.App.NatsURL == "" {
		return
	}
	pub, err := pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
	if err != nil {
		color.Yellow("NATS unavailable, servers will not reload: %v", err)
		return
	}
	defer pub.Close()

	if err := pub.Publish(ctx, events.CorpusIndexUpdated(indexPath, metaPath, cases)); err != nil {
		color.Yellow("Failed to announce index update: %v", err)
		return
	}
	color.Green("Announced %s", events.TypeCorpusIndexUpdated)
}

func printDebugSearch(ctx context.Context, index *corpus.Index, query string, k int, threshold float64) {
	color.Cyan("\nDebug search: %q", query)
	results, err := index.Search(ctx, query, k, threshold)
	if err != nil {
		color.Red("Search failed: %v", err)
		return
	}
	if len(results) == 0 {
		color.Yellow("No cases above threshold %.2f", threshold)
		return
	}
	for i, r := range results {
		color.Green("%2d. %-20s %.4f", i+1, r.Case.CaseID, r.Similarity)
		if cc := r.Case.ChiefComplaint.English; cc != "" {
			color.White("    %s", clip(cc, 100))
		}
	}
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
