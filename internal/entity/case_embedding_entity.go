package entity

import "time"

type CaseEmbedding struct {
	CaseId    string
	Position  int
	Model     string
	Document  string
	Embedding []float32
	CreatedAt time.Time
}

type ScoredCaseEmbedding struct {
	CaseEmbedding *CaseEmbedding
	Similarity    float64
}
