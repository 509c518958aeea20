package textmatch

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// DefaultSimilarity is the combined score above which two questions are
// treated as duplicates.
const DefaultSimilarity = 0.75

const (
	tokenWeight    = 0.4
	sequenceWeight = 0.6
)

// Similarity returns the weighted blend of token Jaccard overlap and
// character sequence ratio for two strings. Either side normalizing to
// empty yields 0.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}

	ta, tb := Tokens(na), Tokens(nb)
	overlap := intersectionSize(ta, tb)
	union := len(ta) + len(tb) - overlap
	jaccard := 0.0
	if union > 0 {
		jaccard = float64(overlap) / float64(union)
	}

	// explicit conversions keep the products from being fused
	return float64(jaccard*tokenWeight) + float64(SequenceRatio(na, nb)*sequenceWeight)
}

// AreSimilar reports whether Similarity(a, b) reaches threshold.
func AreSimilar(a, b string, threshold float64) bool {
	if Normalize(a) == "" || Normalize(b) == "" {
		return false
	}
	return Similarity(a, b) >= threshold
}

// SequenceRatio is the matching-blocks ratio 2*M/T over the characters of
// both strings, in [0, 1].
func SequenceRatio(a, b string) float64 {
	m := difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, ""))
	return m.Ratio()
}

// Deduplicate keeps the first occurrence of every group of similar
// questions, preserving input order.
func Deduplicate(questions []string, threshold float64) []string {
	unique := make([]string, 0, len(questions))
	for _, q := range questions {
		duplicate := false
		for _, kept := range unique {
			if AreSimilar(q, kept, threshold) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			unique = append(unique, q)
		}
	}
	return unique
}
