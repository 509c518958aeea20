package likelihood

import (
	"regexp"
	"sort"
	"strings"
)

var symptomLexicon = []string{
	"fever", "cough", "wheezing", "shortness of breath", "breathlessness", "chest pain", "headache",
	"nausea", "vomiting", "fatigue", "dizziness", "joint pain", "swelling", "stiffness", "back pain",
	"sore throat", "runny nose", "rash", "abdominal pain", "diarrhea", "constipation", "weight loss",
	"night sweats", "palpitations", "fainting", "tingling", "numbness", "weakness", "pain",
}

var symptomSynonyms = map[string]string{
	"sob":             "shortness of breath",
	"dyspnea":         "shortness of breath",
	"tiredness":       "fatigue",
	"lightheadedness": "dizziness",
	"chest tightness": "chest pain",
	"loose stools":    "diarrhea",
	"constipated":     "constipation",
	"weightloss":      "weight loss",
}

type symptomPattern struct {
	canonical string
	re        *regexp.Regexp
}

// symptomPatterns is ordered longest phrase first so multi-word symptoms
// are consumed before their single-word parts.
var symptomPatterns = buildSymptomPatterns()

func buildSymptomPatterns() []symptomPattern {
	canon := make(map[string]string, len(symptomLexicon)+len(symptomSynonyms))
	for _, s := range symptomLexicon {
		canon[s] = s
	}
	for phrase, s := range symptomSynonyms {
		canon[phrase] = s
	}

	phrases := make([]string, 0, len(canon))
	for p := range canon {
		phrases = append(phrases, p)
	}
	sort.Slice(phrases, func(i, j int) bool {
		if len(phrases[i]) != len(phrases[j]) {
			return len(phrases[i]) > len(phrases[j])
		}
		return phrases[i] < phrases[j]
	})

	out := make([]symptomPattern, 0, len(phrases))
	for _, p := range phrases {
		out = append(out, symptomPattern{
			canonical: canon[p],
			re:        regexp.MustCompile(`\b` + regexp.QuoteMeta(p) + `\b`),
		})
	}
	return out
}

type SymptomCount struct {
	Symptom string `json:"symptom"`
	Count   int    `json:"count"`
}

// ExtractSymptoms tallies lexicon symptoms in text, canonicalizing
// synonyms. Each matched span is blanked before shorter phrases are tried,
// so "chest pain" does not also count as "pain". The result is ordered by
// count descending, then name.
func ExtractSymptoms(text string) []SymptomCount {
	t := " " + strings.ToLower(text) + " "
	counts := make(map[string]int)

	for _, p := range symptomPatterns {
		hits := p.re.FindAllStringIndex(t, -1)
		if len(hits) == 0 {
			continue
		}
		counts[p.canonical] += len(hits)
		t = p.re.ReplaceAllString(t, " ")
	}

	out := make([]SymptomCount, 0, len(counts))
	for s, c := range counts {
		out = append(out, SymptomCount{Symptom: s, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Symptom < out[j].Symptom
	})
	return out
}
