// Package likelihood turns a conversation transcript into a ranked list of
// candidate conditions drawn from similar historical cases.
package likelihood

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"clinical-assistant-be/pkg/corpus"
	"clinical-assistant-be/pkg/logging"
)

const (
	SearchBreadth   = 8
	SearchThreshold = 0.05
	TopConditions   = 5

	DefaultFlaggedCategory = "cancer"
	DefaultFlaggedRedFlag  = "Possible cancer-related bleeding"
)

var ErrNoTranscript = errors.New("conversation has no transcript text")

var tagRe = regexp.MustCompile(`<[^>]+>`)

// Line is one transcript line.
type Line struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

type Condition struct {
	Name          string  `json:"disease"`
	Weight        float64 `json:"weight"`
	LikelihoodPct float64 `json:"likelihood_pct"`
}

type Match struct {
	CaseID     string            `json:"case_id"`
	Similarity float64           `json:"similarity"`
	Suspected  map[string]string `json:"suspected"`
}

// Result is a point-in-time snapshot. The aggregator never caches it.
type Result struct {
	Symptoms       []SymptomCount `json:"symptoms"`
	TopConditions  []Condition    `json:"top_diseases"`
	FlaggedRiskPct float64        `json:"flagged_risk_pct"`
	Matches        []Match        `json:"matches"`
	AnalyzedAt     time.Time      `json:"analyzed_at"`
}

type Searcher interface {
	Search(ctx context.Context, query string, k int, threshold float64) ([]corpus.SearchResult, error)
}

type Aggregator struct {
	searcher        Searcher
	logger          logging.Logger
	flaggedCategory string
	flaggedRedFlag  string
	now             func() time.Time
}

type Option func(*Aggregator)

// WithFlaggedCategory sets the condition-name keyword and the red-flag key
// that mark a case as belonging to the flagged risk category.
func WithFlaggedCategory(keyword, redFlag string) Option {
	return func(a *Aggregator) {
		if keyword != "" {
			a.flaggedCategory = keyword
		}
		if redFlag != "" {
			a.flaggedRedFlag = redFlag
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

func NewAggregator(searcher Searcher, logger logging.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		searcher:        searcher,
		logger:          logging.OrNop(logger),
		flaggedCategory: DefaultFlaggedCategory,
		flaggedRedFlag:  DefaultFlaggedRedFlag,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// PatientText joins patient lines, or every line when none is attributed
// to the patient. Markup is stripped.
func PatientText(lines []Line) string {
	join := func(patientOnly bool) string {
		parts := make([]string, 0, len(lines))
		for _, l := range lines {
			if patientOnly && !strings.EqualFold(strings.TrimSpace(l.Role), "patient") {
				continue
			}
			if msg := strings.TrimSpace(tagRe.ReplaceAllString(l.Message, "")); msg != "" {
				parts = append(parts, msg)
			}
		}
		return strings.TrimSpace(strings.Join(parts, " "))
	}
	if text := join(true); text != "" {
		return text
	}
	return join(false)
}

func (a *Aggregator) Analyze(ctx context.Context, lines []Line) (*Result, error) {
	text := PatientText(lines)
	if text == "" {
		return nil, ErrNoTranscript
	}

	results, err := a.searcher.Search(ctx, text, SearchBreadth, SearchThreshold)
	if err != nil {
		return nil, fmt.Errorf("search similar cases: %w", err)
	}

	weights := make(map[string]float64)
	var totalSim, flaggedSim float64
	matches := make([]Match, 0, len(results))

	for _, r := range results {
		sim := math.Max(r.Similarity, 0)
		totalSim += sim

		for _, name := range r.Case.ConditionNames() {
			weights[name] += sim
		}
		if a.isFlagged(r.Case) {
			flaggedSim += sim
		}

		matches = append(matches, Match{
			CaseID:     r.Case.CaseID,
			Similarity: round(r.Similarity, 4),
			Suspected:  r.Case.SuspectedConditions,
		})
	}

	a.logger.Debug("LikelihoodAggregator", "Analyzed transcript", map[string]interface{}{
		"matches":    len(results),
		"conditions": len(weights),
	})

	return &Result{
		Symptoms:       ExtractSymptoms(text),
		TopConditions:  rankConditions(weights),
		FlaggedRiskPct: round(100*flaggedSim/nonZero(totalSim), 1),
		Matches:        matches,
		AnalyzedAt:     a.now().UTC(),
	}, nil
}

func (a *Aggregator) isFlagged(c *corpus.CaseRecord) bool {
	keyword := strings.ToLower(a.flaggedCategory)
	for name := range c.SuspectedConditions {
		if strings.Contains(strings.ToLower(name), keyword) {
			return true
		}
	}
	return c.HasFlag(a.flaggedRedFlag)
}

func rankConditions(weights map[string]float64) []Condition {
	var total float64
	for _, w := range weights {
		total += w
	}
	total = nonZero(total)

	out := make([]Condition, 0, len(weights))
	for name, w := range weights {
		out = append(out, Condition{Name: name, Weight: w, LikelihoodPct: round(100*w/total, 1)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > TopConditions {
		out = out[:TopConditions]
	}
	return out
}

func nonZero(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
