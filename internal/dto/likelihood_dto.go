package dto

import (
	"time"

	"clinical-assistant-be/pkg/likelihood"
)

type DiseaseLikelihoodResponse struct {
	ConversationId string                    `json:"conversation_id"`
	Symptoms       []likelihood.SymptomCount `json:"symptoms"`
	TopDiseases    []likelihood.Condition    `json:"top_diseases"`
	FlaggedRiskPct float64                   `json:"flagged_risk_pct"`
	Matches        []likelihood.Match        `json:"matches"`
	AnalyzedAt     time.Time                 `json:"analyzed_at"`
	// Source is "db" for a stored snapshot and "computed" for a fresh one.
	Source string `json:"source"`
}
