// Package ranking orders the unasked questions of a live session by their
// relevance to the transcript so far.
package ranking

import (
	"context"
	"sort"
	"strings"

	"clinical-assistant-be/pkg/llm"
	"clinical-assistant-be/pkg/logging"
	"clinical-assistant-be/pkg/textmatch"
)

const (
	// HighScore is the score at or above which a question counts as high
	// priority for the result-size policy.
	HighScore = 0.6

	MinHighPriority = 5
	MaxResults      = 10

	// TranscriptClip is the number of trailing transcript characters sent
	// to the generation backend.
	TranscriptClip = 6000
)

const module = "QuestionRanker"

type Language string

const (
	English   Language = "english"
	Swahili   Language = "swahili"
	Bilingual Language = "bilingual"
)

// ParseLanguage maps a request value to a Language. Unknown values are
// bilingual.
func ParseLanguage(s string) Language {
	switch Language(strings.ToLower(strings.TrimSpace(s))) {
	case English:
		return English
	case Swahili:
		return Swahili
	default:
		return Bilingual
	}
}

// Scored is a question with its relevance score in [0, 1].
type Scored struct {
	Question  string  `json:"question"`
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale,omitempty"`
}

type Ranker struct {
	provider       llm.LLMProvider
	logger         logging.Logger
	dedupThreshold float64
}

type RankerOption func(*Ranker)

// WithDedupThreshold sets the similarity at which two input questions are
// treated as the same question.
func WithDedupThreshold(th float64) RankerOption {
	return func(r *Ranker) {
		if th > 0 {
			r.dedupThreshold = th
		}
	}
}

// NewRanker builds a Ranker. A nil provider means every call uses the
// token-overlap fallback.
func NewRanker(provider llm.LLMProvider, logger logging.Logger, opts ...RankerOption) *Ranker {
	r := &Ranker{
		provider:       provider,
		logger:         logging.OrNop(logger),
		dedupThreshold: textmatch.DefaultSimilarity,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rank scores questions against transcript. It never fails: generation
// errors and unusable output fall through to Fallback.
func (r *Ranker) Rank(ctx context.Context, transcript string, questions []string, lang Language) []Scored {
	cleaned := make([]string, 0, len(questions))
	for _, q := range questions {
		if q = strings.TrimSpace(q); q != "" {
			cleaned = append(cleaned, q)
		}
	}
	if len(cleaned) == 0 {
		return []Scored{}
	}
	cleaned = textmatch.Deduplicate(cleaned, r.dedupThreshold)
	transcript = strings.TrimSpace(transcript)

	if r.provider != nil {
		if out, ok := r.rankWithModel(ctx, transcript, cleaned, lang); ok {
			return out
		}
	}
	return Fallback(transcript, cleaned)
}

func (r *Ranker) rankWithModel(ctx context.Context, transcript string, questions []string, lang Language) ([]Scored, bool) {
	prompt := buildPrompt(clipTail(transcript, TranscriptClip), questions, lang)

	reply, err := r.provider.Generate(ctx, prompt, llm.WithTemperature(0.1))
	if err != nil {
		r.logger.Warn(module, "Generation failed, using heuristic ranking", map[string]interface{}{
			"error":     err.Error(),
			"questions": len(questions),
		})
		return nil, false
	}

	items, err := parseScored(reply)
	if err != nil {
		r.logger.Warn(module, "Unparseable ranking output, using heuristic ranking", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, false
	}

	filtered := restrictToInput(items, questions)
	if len(filtered) == 0 {
		r.logger.Warn(module, "Ranking output matched no input question, using heuristic ranking", map[string]interface{}{
			"returned": len(items),
		})
		return nil, false
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Score > filtered[j].Score
	})
	return applySizePolicy(filtered), true
}

// restrictToInput drops questions that are not in the input list after
// normalization and maps the rest back to their input text. Each input
// question appears at most once.
func restrictToInput(items []Scored, questions []string) []Scored {
	original := make(map[string]string, len(questions))
	for _, q := range questions {
		original[textmatch.Normalize(q)] = q
	}

	seen := make(map[string]struct{}, len(items))
	out := make([]Scored, 0, len(items))
	for _, it := range items {
		norm := textmatch.Normalize(it.Question)
		q, ok := original[norm]
		if !ok {
			continue
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, Scored{Question: q, Score: clamp(it.Score), Rationale: it.Rationale})
	}
	return out
}

// applySizePolicy expects items sorted by score descending.
func applySizePolicy(items []Scored) []Scored {
	high := 0
	for _, it := range items {
		if it.Score >= HighScore {
			high++
		}
	}
	if high < MinHighPriority || high > MaxResults {
		return items[:min(len(items), MaxResults)]
	}
	return items[:high]
}

// Fallback scores each question by the share of its tokens that occur in
// the transcript. It is deterministic and total.
func Fallback(transcript string, questions []string) []Scored {
	convTokens := textmatch.Tokens(textmatch.Normalize(transcript))

	out := make([]Scored, 0, len(questions))
	for _, q := range questions {
		qTokens := textmatch.Tokens(textmatch.Normalize(q))
		score := 0.0
		if len(qTokens) > 0 {
			overlap := 0
			for tok := range qTokens {
				if _, ok := convTokens[tok]; ok {
					overlap++
				}
			}
			score = float64(overlap) / float64(max(1, len(qTokens)))
		}
		out = append(out, Scored{Question: q, Score: score})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out[:min(len(out), MaxResults)]
}

func clamp(s float64) float64 {
	switch {
	case s < 0 || s != s:
		return 0
	case s > 1:
		return 1
	default:
		return s
	}
}

func clipTail(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
