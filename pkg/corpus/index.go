package corpus

import (
	"context"
	"fmt"
	"strings"

	"clinical-assistant-be/pkg/embedding"
	"clinical-assistant-be/pkg/logging"
)

// SearchBreadth caps the candidate pool pulled from the vector structure
// before the score threshold is applied.
const SearchBreadth = 50

const module = "CorpusIndex"

// Logger is the logging contract used by the index.
type Logger = logging.Logger

// NopLogger discards log output.
var NopLogger Logger = logging.Nop

// SearchResult is a matching case and its cosine similarity to the query.
type SearchResult struct {
	Case       *CaseRecord `json:"case"`
	Similarity float64     `json:"similarity"`
}

// SuggestedQuestion is a recommended question drawn from a similar case.
type SuggestedQuestion struct {
	Question   Bilingual `json:"question"`
	CaseID     string    `json:"case_id"`
	Similarity float64   `json:"similarity"`
}

type Stats struct {
	TotalCases int    `json:"total_cases"`
	Built      bool   `json:"built"`
	Dimension  int    `json:"dimension"`
	Model      string `json:"model"`
}

// Index is the searchable case collection. Build or Load populate it once;
// after that it is read-only and safe for concurrent readers.
type Index struct {
	provider embedding.Provider
	logger   Logger

	records []CaseRecord
	byID    map[string]int
	vectors *FlatIndex
	model   string
}

func NewIndex(provider embedding.Provider, logger Logger) *Index {
	return &Index{
		provider: provider,
		logger:   logging.OrNop(logger),
	}
}

// BuildFromFile parses the raw JSON corpus at path and builds from it.
func (idx *Index) BuildFromFile(ctx context.Context, path string) error {
	records, err := ParseRecordsFile(path, idx.logger)
	if err != nil {
		return err
	}
	return idx.Build(ctx, records)
}

// Build embeds every record with a non-empty blob and builds the vector
// structure. Records with an empty blob are skipped. Missing case ids are
// replaced with case_<position+1>.
func (idx *Index) Build(ctx context.Context, records []CaseRecord) error {
	if idx.provider == nil {
		return fmt.Errorf("%w: no embedding provider", ErrIndexBuild)
	}

	kept := make([]CaseRecord, 0, len(records))
	blobs := make([]string, 0, len(records))
	for i, rec := range records {
		if rec.CaseID == "" {
			rec.CaseID = fmt.Sprintf("case_%d", i+1)
		}
		blob := Blob(&rec)
		if strings.TrimSpace(blob) == "" {
			idx.logger.Warn(module, "Skipping case with no text", map[string]interface{}{
				"case_id":  rec.CaseID,
				"position": i,
			})
			continue
		}
		kept = append(kept, rec)
		blobs = append(blobs, blob)
	}

	if len(kept) == 0 {
		return fmt.Errorf("%w: no case has text to embed (%d records)", ErrIndexBuild, len(records))
	}

	idx.logger.Info(module, "Embedding cases", map[string]interface{}{
		"cases":    len(kept),
		"skipped":  len(records) - len(kept),
		"provider": idx.provider.Name(),
	})

	vectors, err := idx.provider.Embed(ctx, blobs)
	if err != nil {
		return fmt.Errorf("%w: embed cases: %v", ErrIndexBuild, err)
	}
	if len(vectors) != len(kept) {
		return fmt.Errorf("%w: provider returned %d embeddings for %d cases", ErrIndexBuild, len(vectors), len(kept))
	}

	if len(vectors[0]) == 0 {
		return fmt.Errorf("%w: provider %s returned zero-length embeddings", ErrIndexBuild, idx.provider.Name())
	}

	flat := NewFlatIndex(len(vectors[0]))
	for i := range kept {
		kept[i].Embedding = embedding.NormalizeL2(vectors[i])
		if err := flat.Add(kept[i].Embedding); err != nil {
			return fmt.Errorf("%w: %v", ErrIndexBuild, err)
		}
	}

	idx.install(kept, flat, idx.provider.Name())
	idx.logger.Info(module, "Index built", map[string]interface{}{
		"cases":     len(kept),
		"dimension": flat.Dimension(),
	})
	return nil
}

func (idx *Index) install(records []CaseRecord, flat *FlatIndex, model string) {
	byID := make(map[string]int, len(records))
	for i := range records {
		if _, dup := byID[records[i].CaseID]; dup {
			idx.logger.Warn(module, "Duplicate case id, keeping first", map[string]interface{}{
				"case_id": records[i].CaseID,
			})
			continue
		}
		byID[records[i].CaseID] = i
	}
	idx.records = records
	idx.byID = byID
	idx.vectors = flat
	idx.model = model
}

func (idx *Index) built() bool {
	return idx != nil && idx.vectors != nil
}

// Search returns up to k cases whose similarity to query is at least
// threshold, best first. Ties keep corpus order.
func (idx *Index) Search(ctx context.Context, query string, k int, threshold float64) ([]SearchResult, error) {
	if !idx.built() {
		return nil, ErrIndexNotBuilt
	}
	if k <= 0 {
		return []SearchResult{}, nil
	}
	if idx.provider == nil {
		return nil, fmt.Errorf("embed query: no embedding provider")
	}

	vecs, err := idx.provider.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: provider returned %d vectors", len(vecs))
	}
	q := embedding.NormalizeL2(vecs[0])

	breadth := len(idx.records)
	if breadth > SearchBreadth {
		breadth = SearchBreadth
	}
	hits, err := idx.vectors.Search(q, breadth)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	results := make([]SearchResult, 0, k)
	for _, h := range hits {
		if h.Score < threshold {
			continue
		}
		results = append(results, SearchResult{
			Case:       &idx.records[h.Position],
			Similarity: h.Score,
		})
		if len(results) >= k {
			break
		}
	}
	return results, nil
}

// GetCase looks a record up by case id.
func (idx *Index) GetCase(id string) (*CaseRecord, bool) {
	if !idx.built() {
		return nil, false
	}
	pos, ok := idx.byID[id]
	if !ok {
		return nil, false
	}
	return &idx.records[pos], true
}

func (idx *Index) Stats() Stats {
	if !idx.built() {
		return Stats{}
	}
	return Stats{
		TotalCases: len(idx.records),
		Built:      true,
		Dimension:  idx.vectors.Dimension(),
		Model:      idx.model,
	}
}

// Records returns the indexed cases in position order. Callers must not
// modify them.
func (idx *Index) Records() []CaseRecord {
	if !idx.built() {
		return nil
	}
	return idx.records
}

// SuggestQuestions collects the recommended questions of the cases similar
// to query. Questions are deduplicated on their lowercased English/Swahili
// pair and capped at maxQuestions.
func (idx *Index) SuggestQuestions(ctx context.Context, query string, k, maxQuestions int, threshold float64) ([]SuggestedQuestion, error) {
	results, err := idx.Search(ctx, query, k, threshold)
	if err != nil {
		return nil, err
	}
	return SuggestFromResults(results, maxQuestions), nil
}

// SuggestFromResults is SuggestQuestions over an existing result list.
func SuggestFromResults(results []SearchResult, maxQuestions int) []SuggestedQuestion {
	if maxQuestions <= 0 {
		return []SuggestedQuestion{}
	}
	type pair struct{ en, sw string }
	seen := make(map[pair]struct{})
	out := make([]SuggestedQuestion, 0, maxQuestions)

	for _, r := range results {
		for _, qa := range r.Case.Questions {
			if len(out) >= maxQuestions {
				return out
			}
			if qa.Question.IsEmpty() {
				continue
			}
			p := pair{
				en: strings.ToLower(strings.TrimSpace(qa.Question.English)),
				sw: strings.ToLower(strings.TrimSpace(qa.Question.Swahili)),
			}
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, SuggestedQuestion{
				Question:   qa.Question,
				CaseID:     r.Case.CaseID,
				Similarity: r.Similarity,
			})
		}
	}
	return out
}
