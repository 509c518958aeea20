package textmatch

import "strings"

// Calibration values for asked-detection. They were picked by hand against
// a handful of transcripts and should be re-tuned on real data.
const (
	DefaultMinOverlap = 3
	DefaultMinRatio   = 0.55
)

// Matcher decides whether a planned question was asked in a transcript
// segment.
type Matcher struct {
	MinOverlap int
	MinRatio   float64
}

// DefaultMatcher returns a Matcher with the calibrated defaults.
func DefaultMatcher() Matcher {
	return Matcher{MinOverlap: DefaultMinOverlap, MinRatio: DefaultMinRatio}
}

// Asked takes a normalized question and a normalized transcript segment.
// Verbatim inclusion matches directly; paraphrases match when enough tokens
// overlap relative to the shorter side.
func (m Matcher) Asked(questionNorm, transcriptNorm string) bool {
	if questionNorm == "" || transcriptNorm == "" {
		return false
	}
	if strings.Contains(transcriptNorm, questionNorm) {
		return true
	}

	qTokens := Tokens(questionNorm)
	tTokens := Tokens(transcriptNorm)
	if len(qTokens) == 0 {
		return false
	}

	overlap := intersectionSize(qTokens, tTokens)
	shorter := min(len(qTokens), len(tTokens))
	ratio := float64(overlap) / float64(max(1, shorter))

	return overlap >= m.MinOverlap && ratio >= m.MinRatio
}
