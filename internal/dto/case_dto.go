package dto

import "clinical-assistant-be/pkg/corpus"

type SearchCasesRequest struct {
	Query      string   `json:"query" validate:"required"`
	MaxResults int      `json:"max_results" validate:"gte=0"`
	Threshold  *float64 `json:"similarity_threshold" validate:"omitempty,gte=-1,lte=1"`
}

type CaseSearchResult struct {
	CaseId               string                      `json:"case_id"`
	SimilarityScore      float64                     `json:"similarity_score"`
	PatientBackground    corpus.Bilingual            `json:"patient_background"`
	ChiefComplaint       corpus.Bilingual            `json:"chief_complaint"`
	MedicalHistory       corpus.Bilingual            `json:"medical_history"`
	OpeningStatement     corpus.Bilingual            `json:"opening_statement"`
	RecommendedQuestions []corpus.QA                 `json:"recommended_questions"`
	RedFlags             map[string]corpus.FlagValue `json:"red_flags"`
	SuspectedConditions  map[string]string           `json:"suspected_conditions"`
}

type SuggestedQuestionResponse struct {
	Question        corpus.Bilingual `json:"question"`
	SimilarityScore float64          `json:"similarity_score"`
	CaseId          string           `json:"case_id"`
}

type SearchCasesResponse struct {
	Query              string                      `json:"query"`
	Results            []CaseSearchResult          `json:"results"`
	SuggestedQuestions []SuggestedQuestionResponse `json:"suggested_questions"`
	TotalResults       int                         `json:"total_results"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	IndexLoaded bool   `json:"index_loaded"`
	TotalCases  int    `json:"total_cases"`
	Database    bool   `json:"database"`
}
