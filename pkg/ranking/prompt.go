package ranking

import (
	"fmt"
	"strings"
)

const englishInstruction = "Score the following questions by their CRITICAL IMPORTANCE for cancer diagnosis (0 to 1). " +
	"Give the highest scores to questions that:\n" +
	"1. Could reveal life-changing cancer red flags or symptoms\n" +
	"2. If not asked, could lead to a misdiagnosis or a missed cancer\n" +
	"3. Are essential for establishing the medical history now\n\n" +
	"Return ONLY JSON in this exact format: " +
	`[{"question":"...","score":0.0,"rationale":"why this is critical"}, ...]. ` +
	"Sort by descending score. Include only the top 5-10 most critical questions. No extra text."

const swahiliInstruction = "Tathmini maswali yafuatayo kwa umuhimu wake katika kuchunguza saratani (0 hadi 1). " +
	"Toa alama ya juu zaidi kwa maswali ambayo:\n" +
	"1. Yanaweza kufichua dalili hatari za saratani\n" +
	"2. Yasipoulizwa mgonjwa anaweza kupata uchunguzi usio sahihi\n" +
	"3. Yanahitajika sasa ili kupata historia ya kutosha ya matibabu\n\n" +
	`Toa JSON pekee: [{"question":"...","score":0.0,"rationale":"..."}, ...]. ` +
	"Panga kwa alama kubwa kwenda ndogo. Weka maswali 5-10 ya juu pekee. Hakuna maelezo mengine."

func buildPrompt(transcript string, questions []string, lang Language) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Medical conversation context (most recent):\n%s\n\n", transcript)
	b.WriteString("Questions to evaluate for critical diagnostic importance:\n")
	for _, q := range questions {
		fmt.Fprintf(&b, "- %s\n", q)
	}
	b.WriteString("\n")
	if lang == Swahili {
		b.WriteString(swahiliInstruction)
	} else {
		b.WriteString(englishInstruction)
	}
	return b.String()
}
