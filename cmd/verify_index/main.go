package main

import (
	"context"
	"flag"
	"os"

	"clinical-assistant-be/internal/bootstrap"
	"clinical-assistant-be/internal/config"
	"clinical-assistant-be/internal/pkg/logger"
	"clinical-assistant-be/internal/repository/implementation"
	"clinical-assistant-be/pkg/corpus"
	"clinical-assistant-be/pkg/database"
	"clinical-assistant-be/pkg/embedding"

	"github.com/fatih/color"
)

// verify_index checks that the pgvector mirror ranks cases the same way as
// the file index.
func main() {
	cfg := config.Load()

	query := flag.String("query", "chest pain and shortness of breath", "query to compare")
	k := flag.Int("k", cfg.Corpus.MaxResults, "number of results to compare")
	flag.Parse()

	if cfg.Database.Connection == "" {
		color.Red("DB_CONNECTION_STRING is not set")
		os.Exit(1)
	}

	ctx := context.Background()
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	defer sysLogger.Sync()

	provider, err := bootstrap.NewEmbeddingProvider(cfg)
	if err != nil {
		color.Red("Embedding provider: %v", err)
		os.Exit(1)
	}

	index := corpus.NewIndex(provider, sysLogger)
	if err := index.Load(cfg.Corpus.IndexPath, cfg.Corpus.MetadataPath); err != nil {
		color.Red("Load index: %v", err)
		os.Exit(1)
	}

	fileResults, err := index.Search(ctx, *query, *k, -1)
	if err != nil {
		color.Red("File search: %v", err)
		os.Exit(1)
	}

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, false)
	if err != nil {
		color.Red("Database: %v", err)
		os.Exit(1)
	}
	repo := implementation.NewCaseEmbeddingRepository(db)

	count, err := repo.Count(ctx)
	if err != nil {
		color.Red("Count mirror: %v", err)
		os.Exit(1)
	}
	color.Cyan("File index: %d cases, mirror: %d rows", index.Stats().TotalCases, count)

	vecs, err := provider.Embed(ctx, []string{*query})
	if err != nil || len(vecs) != 1 {
		color.Red("Embed query: %v", err)
		os.Exit(1)
	}
	dbResults, err := repo.SearchSimilarWithScore(ctx, embedding.NormalizeL2(vecs[0]), *k, -1)
	if err != nil {
		color.Red("Mirror search: %v", err)
		os.Exit(1)
	}

	mismatches := 0
	n := len(fileResults)
	if len(dbResults) > n {
		n = len(dbResults)
	}
	for i := 0; i < n; i++ {
		var fileID, dbID string
		var fileSim, dbSim float64
		if i < len(fileResults) {
			fileID, fileSim = fileResults[i].Case.CaseID, fileResults[i].Similarity
		}
		if i < len(dbResults) {
			dbID, dbSim = dbResults[i].CaseEmbedding.CaseId, dbResults[i].Similarity
		}
		if fileID == dbID {
			color.Green("%2d. %-20s file=%.4f db=%.4f", i+1, fileID, fileSim, dbSim)
			continue
		}
		mismatches++
		color.Red("%2d. file=%s (%.4f) db=%s (%.4f)", i+1, fileID, fileSim, dbID, dbSim)
	}

	if mismatches > 0 || int64(index.Stats().TotalCases) != count {
		color.Yellow("Mirror differs from file index (%d rank mismatches)", mismatches)
		os.Exit(2)
	}
	color.Green("Mirror matches file index")
}
