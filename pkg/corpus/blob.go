package corpus

import (
	"sort"
	"strings"
)

// Blob concatenates every present free-text field of a record into the
// text that gets embedded. Each part carries a label so that field context
// survives in the embedding.
func Blob(c *CaseRecord) string {
	var parts []string

	addBilingual := func(label string, b Bilingual) {
		if b.HasEnglish() {
			parts = append(parts, label+": "+strings.TrimSpace(b.English))
		}
		if b.HasSwahili() {
			parts = append(parts, label+" (Swahili): "+strings.TrimSpace(b.Swahili))
		}
	}

	addBilingual("Background", c.Background)
	addBilingual("Chief Complaint", c.ChiefComplaint)
	addBilingual("Medical History", c.MedicalHistory)
	addBilingual("Opening Statement", c.OpeningStatement)

	var qa []string
	for _, q := range c.Questions {
		if q.Question.HasEnglish() {
			qa = append(qa, strings.TrimSpace(q.Question.English))
		}
		if q.Response.HasEnglish() {
			qa = append(qa, strings.TrimSpace(q.Response.English))
		}
	}
	if len(qa) > 0 {
		parts = append(parts, "Questions and Responses: "+strings.Join(qa, " "))
	}

	var flags []string
	for _, k := range sortedKeys(c.RedFlags) {
		if v := c.RedFlags[k]; v.Present && v.Raw != "" {
			flags = append(flags, k+": "+v.Raw)
		}
	}
	if len(flags) > 0 {
		parts = append(parts, "Red Flags: "+strings.Join(flags, " "))
	}

	var suspected []string
	for _, k := range sortedKeys(c.SuspectedConditions) {
		if note := c.SuspectedConditions[k]; note != "" {
			suspected = append(suspected, k+": "+note)
		} else {
			suspected = append(suspected, k)
		}
	}
	if len(suspected) > 0 {
		parts = append(parts, "Suspected Conditions: "+strings.Join(suspected, " "))
	}

	return strings.Join(parts, " ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
