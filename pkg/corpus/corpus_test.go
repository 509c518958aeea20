package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"clinical-assistant-be/pkg/embedding"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []CaseRecord {
	return []CaseRecord{
		{CaseID: "A"},
		{
			CaseID:         "B",
			ChiefComplaint: Bilingual{English: "persistent cough with night sweats and weight loss"},
			Questions: []QA{
				{Question: Bilingual{English: "How long have you had the cough?", Swahili: "Umekuwa na kikohozi kwa muda gani?"}},
				{Question: Bilingual{English: "Do you sweat at night?"}},
			},
			SuspectedConditions: map[string]string{"Tuberculosis": "likely"},
		},
		{
			CaseID:         "C",
			ChiefComplaint: Bilingual{English: "joint pain and swelling in both knees"},
			Questions: []QA{
				{Question: Bilingual{English: "how long have you had the cough?", Swahili: "umekuwa na kikohozi kwa muda gani?"}},
				{Question: Bilingual{English: "Which joints are swollen?"}},
			},
			SuspectedConditions: map[string]string{"Rheumatoid arthritis": ""},
		},
	}
}

func buildIndex(t *testing.T, records []CaseRecord) *Index {
	t.Helper()
	idx := NewIndex(embedding.NewHashProvider(64), NopLogger)
	require.NoError(t, idx.Build(context.Background(), records))
	return idx
}

func TestBuild_SkipsEmptyBlob(t *testing.T) {
	idx := buildIndex(t, sampleRecords())

	stats := idx.Stats()
	assert.True(t, stats.Built)
	assert.Equal(t, 2, stats.TotalCases)
	assert.Equal(t, 64, stats.Dimension)
	assert.Equal(t, "hash/64", stats.Model)

	_, ok := idx.GetCase("A")
	assert.False(t, ok)
	b, ok := idx.GetCase("B")
	require.True(t, ok)
	assert.Equal(t, "B", b.CaseID)

	results, err := idx.Search(context.Background(), "unrelated query", 5, 0.99)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBuild_AssignsPositionalIDs(t *testing.T) {
	records := sampleRecords()
	records[1].CaseID = ""
	idx := buildIndex(t, records)

	_, ok := idx.GetCase("case_2")
	assert.True(t, ok)
}

func TestBuild_NothingToEmbed(t *testing.T) {
	idx := NewIndex(embedding.NewHashProvider(16), nil)
	err := idx.Build(context.Background(), []CaseRecord{{CaseID: "x"}, {}})
	assert.ErrorIs(t, err, ErrIndexBuild)
	assert.False(t, idx.Stats().Built)
}

type emptyVectorProvider struct{}

func (emptyVectorProvider) Name() string { return "empty" }

func (emptyVectorProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	return make([][]float32, len(texts)), nil
}

func TestBuild_ZeroLengthEmbeddings(t *testing.T) {
	idx := NewIndex(emptyVectorProvider{}, nil)
	err := idx.Build(context.Background(), sampleRecords())
	assert.ErrorIs(t, err, ErrIndexBuild)
	assert.False(t, idx.Stats().Built)
}

func TestSearch_NotBuilt(t *testing.T) {
	idx := NewIndex(embedding.NewHashProvider(16), nil)
	_, err := idx.Search(context.Background(), "cough", 3, 0)
	assert.ErrorIs(t, err, ErrIndexNotBuilt)

	h := NewHandle(nil)
	_, err = h.Search(context.Background(), "cough", 3, 0)
	assert.ErrorIs(t, err, ErrIndexNotBuilt)
	_, ok := h.GetCase("B")
	assert.False(t, ok)
}

func TestSearch_ExactBlobRanksFirst(t *testing.T) {
	records := sampleRecords()
	idx := buildIndex(t, records)

	results, err := idx.Search(context.Background(), Blob(&records[2]), 5, -1)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "C", results[0].Case.CaseID)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-5)
	assert.GreaterOrEqual(t, results[0].Similarity, results[1].Similarity)
}

func TestSearch_ThresholdMonotonic(t *testing.T) {
	idx := buildIndex(t, sampleRecords())
	ctx := context.Background()
	query := "cough and swelling"

	var prev []SearchResult
	for _, th := range []float64{-1, 0, 0.1, 0.3, 0.6, 0.99} {
		results, err := idx.Search(ctx, query, 10, th)
		require.NoError(t, err)
		for _, r := range results {
			assert.GreaterOrEqual(t, r.Similarity, th)
		}
		if prev != nil {
			require.LessOrEqual(t, len(results), len(prev))
			for i := range results {
				assert.Equal(t, prev[i].Case.CaseID, results[i].Case.CaseID)
			}
		}
		prev = results
	}
}

func TestSearch_TruncatesToK(t *testing.T) {
	idx := buildIndex(t, sampleRecords())

	results, err := idx.Search(context.Background(), "cough", 1, -1)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	results, err = idx.Search(context.Background(), "cough", 0, -1)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "cases.index")
	metaPath := filepath.Join(dir, "cases.msgpack")
	ctx := context.Background()

	idx := buildIndex(t, sampleRecords())
	require.NoError(t, idx.Save(indexPath, metaPath))
	assert.True(t, IndexFilesExist(indexPath, metaPath))

	loaded := NewIndex(embedding.NewHashProvider(64), nil)
	require.NoError(t, loaded.Load(indexPath, metaPath))
	assert.Equal(t, idx.Stats(), loaded.Stats())

	for _, q := range []string{"night sweats", "knee swelling", "unrelated"} {
		want, err := idx.Search(ctx, q, 5, -1)
		require.NoError(t, err)
		got, err := loaded.Search(ctx, q, 5, -1)
		require.NoError(t, err)
		require.Len(t, got, len(want))
		for i := range want {
			assert.Equal(t, want[i].Case.CaseID, got[i].Case.CaseID)
			assert.Equal(t, want[i].Similarity, got[i].Similarity)
		}
	}

	b, ok := loaded.GetCase("B")
	require.True(t, ok)
	assert.Equal(t, "likely", b.SuspectedConditions["Tuberculosis"])
	assert.Len(t, b.Embedding, 64)
}

func TestLoad_CorruptFiles(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "cases.index")
	metaPath := filepath.Join(dir, "cases.msgpack")

	full := buildIndex(t, sampleRecords())
	require.NoError(t, full.Save(indexPath, metaPath))

	t.Run("count mismatch", func(t *testing.T) {
		otherIndex := filepath.Join(dir, "other.index")
		otherMeta := filepath.Join(dir, "other.msgpack")
		single := buildIndex(t, sampleRecords()[:2])
		require.NoError(t, single.Save(otherIndex, otherMeta))

		err := NewIndex(embedding.NewHashProvider(64), nil).Load(indexPath, otherMeta)
		assert.ErrorIs(t, err, ErrCorruptIndex)
	})

	t.Run("truncated vectors", func(t *testing.T) {
		data, err := os.ReadFile(indexPath)
		require.NoError(t, err)
		truncated := filepath.Join(dir, "truncated.index")
		require.NoError(t, os.WriteFile(truncated, data[:len(data)-4], 0o644))

		err = NewIndex(embedding.NewHashProvider(64), nil).Load(truncated, metaPath)
		assert.ErrorIs(t, err, ErrCorruptIndex)
	})

	t.Run("bad magic", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.index")
		require.NoError(t, os.WriteFile(bad, []byte("NOPE0000000000000000"), 0o644))

		err := NewIndex(embedding.NewHashProvider(64), nil).Load(bad, metaPath)
		assert.ErrorIs(t, err, ErrCorruptIndex)
	})

	t.Run("garbage metadata", func(t *testing.T) {
		garbage := filepath.Join(dir, "garbage.msgpack")
		require.NoError(t, os.WriteFile(garbage, []byte{0xc1, 0x00, 0x01}, 0o644))

		err := NewIndex(embedding.NewHashProvider(64), nil).Load(indexPath, garbage)
		assert.ErrorIs(t, err, ErrCorruptIndex)
	})

	t.Run("other embedding model", func(t *testing.T) {
		other := NewIndex(embedding.NewHashProvider(32), nil)
		err := other.Load(indexPath, metaPath)
		assert.ErrorIs(t, err, ErrModelMismatch)
		assert.ErrorIs(t, err, ErrCorruptIndex)
		assert.False(t, other.Stats().Built)
	})

	t.Run("missing file is not corruption", func(t *testing.T) {
		err := NewIndex(embedding.NewHashProvider(64), nil).Load(filepath.Join(dir, "absent"), metaPath)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCorruptIndex)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestSave_NotBuilt(t *testing.T) {
	dir := t.TempDir()
	err := NewIndex(embedding.NewHashProvider(16), nil).Save(filepath.Join(dir, "a"), filepath.Join(dir, "b"))
	assert.ErrorIs(t, err, ErrIndexNotBuilt)
}

func TestSuggestQuestions_DedupesAndCaps(t *testing.T) {
	idx := buildIndex(t, sampleRecords())

	qs, err := idx.SuggestQuestions(context.Background(), "cough", 5, 9, -1)
	require.NoError(t, err)
	assert.Len(t, qs, 3)
	for i := 1; i < len(qs); i++ {
		assert.GreaterOrEqual(t, qs[i-1].Similarity, qs[i].Similarity)
	}

	qs, err = idx.SuggestQuestions(context.Background(), "cough", 5, 1, -1)
	require.NoError(t, err)
	assert.Len(t, qs, 1)
}

func TestHandle_Swap(t *testing.T) {
	first := buildIndex(t, sampleRecords()[:2])
	h := NewHandle(first)
	assert.Equal(t, 1, h.Stats().TotalCases)

	second := buildIndex(t, sampleRecords())
	old := h.Swap(second)
	assert.Same(t, first, old)
	assert.Same(t, second, h.Current())
	assert.Equal(t, 2, h.Stats().TotalCases)
}
