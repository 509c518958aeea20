package corpus

import (
	"context"
	"sync/atomic"
)

// Handle publishes the current Index to concurrent readers. A rebuild
// constructs a fresh Index and swaps it in.
type Handle struct {
	current atomic.Pointer[Index]
}

func NewHandle(idx *Index) *Handle {
	h := &Handle{}
	if idx != nil {
		h.current.Store(idx)
	}
	return h
}

// Current returns the published index, or nil.
func (h *Handle) Current() *Index {
	return h.current.Load()
}

// Swap publishes idx and returns the index it replaced.
func (h *Handle) Swap(idx *Index) *Index {
	return h.current.Swap(idx)
}

func (h *Handle) Search(ctx context.Context, query string, k int, threshold float64) ([]SearchResult, error) {
	idx := h.Current()
	if idx == nil {
		return nil, ErrIndexNotBuilt
	}
	return idx.Search(ctx, query, k, threshold)
}

func (h *Handle) SuggestQuestions(ctx context.Context, query string, k, maxQuestions int, threshold float64) ([]SuggestedQuestion, error) {
	idx := h.Current()
	if idx == nil {
		return nil, ErrIndexNotBuilt
	}
	return idx.SuggestQuestions(ctx, query, k, maxQuestions, threshold)
}

func (h *Handle) GetCase(id string) (*CaseRecord, bool) {
	return h.Current().GetCase(id)
}

func (h *Handle) Stats() Stats {
	return h.Current().Stats()
}

// Searcher is the read side of the corpus used by services.
type Searcher interface {
	Search(ctx context.Context, query string, k int, threshold float64) ([]SearchResult, error)
	SuggestQuestions(ctx context.Context, query string, k, maxQuestions int, threshold float64) ([]SuggestedQuestion, error)
	GetCase(id string) (*CaseRecord, bool)
	Stats() Stats
}

var (
	_ Searcher = (*Index)(nil)
	_ Searcher = (*Handle)(nil)
)
