package entity

import (
	"time"

	"clinical-assistant-be/pkg/likelihood"
)

// LikelihoodSnapshot is a stored aggregator result for one conversation.
type LikelihoodSnapshot struct {
	ConversationId string
	AnalyzedAt     time.Time
	FlaggedRiskPct float64
	Symptoms       []likelihood.SymptomCount
	TopConditions  []likelihood.Condition
	Matches        []likelihood.Match
}
