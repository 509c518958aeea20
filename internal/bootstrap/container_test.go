package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"clinical-assistant-be/internal/config"
	"clinical-assistant-be/internal/pkg/logger"
	"clinical-assistant-be/pkg/corpus"
	"clinical-assistant-be/pkg/embedding"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const casesJSON = `[
	{"case_id": "TB-1", "chief_complaint_history": {"english": "cough for three weeks with night sweats"}},
	{"case_id": "RA-1", "chief_complaint_history": {"english": "swollen painful knees every morning"}}
]`

func corpusConfig(t *testing.T, withJSON bool) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{Corpus: config.CorpusConfig{
		JSONPath:     filepath.Join(dir, "cases.json"),
		IndexPath:    filepath.Join(dir, "cases.index"),
		MetadataPath: filepath.Join(dir, "cases.msgpack"),
	}}
	if withJSON {
		require.NoError(t, os.WriteFile(cfg.Corpus.JSONPath, []byte(casesJSON), 0o644))
	}
	return cfg
}

func saveWith(t *testing.T, cfg *config.Config, provider embedding.Provider) {
	t.Helper()
	records, err := corpus.ParseRecords([]byte(casesJSON), nil)
	require.NoError(t, err)
	idx := corpus.NewIndex(provider, nil)
	require.NoError(t, idx.Build(context.Background(), records))
	require.NoError(t, idx.Save(cfg.Corpus.IndexPath, cfg.Corpus.MetadataPath))
}

func TestLoadCorpus_BuildsAndSavesWhenNoFiles(t *testing.T) {
	cfg := corpusConfig(t, true)

	idx, err := LoadCorpus(context.Background(), cfg, embedding.NewHashProvider(64), logger.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Stats().TotalCases)
	assert.True(t, corpus.IndexFilesExist(cfg.Corpus.IndexPath, cfg.Corpus.MetadataPath))
}

func TestLoadCorpus_RebuildsFilesFromAnotherModel(t *testing.T) {
	cfg := corpusConfig(t, true)
	saveWith(t, cfg, embedding.NewHashProvider(64))

	idx, err := LoadCorpus(context.Background(), cfg, embedding.NewHashProvider(128), logger.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, "hash/128", idx.Stats().Model)
	assert.Equal(t, 128, idx.Stats().Dimension)

	reloaded := corpus.NewIndex(embedding.NewHashProvider(128), nil)
	assert.NoError(t, reloaded.Load(cfg.Corpus.IndexPath, cfg.Corpus.MetadataPath), "rebuilt files are saved")
}

func TestLoadCorpus_StaleFilesWithoutCorpusFail(t *testing.T) {
	cfg := corpusConfig(t, false)
	saveWith(t, cfg, embedding.NewHashProvider(64))

	_, err := LoadCorpus(context.Background(), cfg, embedding.NewHashProvider(128), logger.NewNopLogger())
	assert.ErrorIs(t, err, corpus.ErrModelMismatch)
}

func TestLoadCorpus_MissingCorpusLeavesIndexUnbuilt(t *testing.T) {
	cfg := corpusConfig(t, false)

	idx, err := LoadCorpus(context.Background(), cfg, embedding.NewHashProvider(64), logger.NewNopLogger())
	require.NoError(t, err)
	assert.False(t, idx.Stats().Built)
}
