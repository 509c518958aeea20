package service

import (
	"context"
	"math"
	"strings"

	"clinical-assistant-be/internal/dto"
	"clinical-assistant-be/pkg/corpus"

	"github.com/gofiber/fiber/v2"
)

// recommendedQuestionsPerResult caps the questions shown per search hit.
const recommendedQuestionsPerResult = 5

type ICaseService interface {
	Search(ctx context.Context, req *dto.SearchCasesRequest) (*dto.SearchCasesResponse, error)
	GetCase(ctx context.Context, caseID string) (*corpus.CaseRecord, error)
	Stats(ctx context.Context) corpus.Stats
}

type CaseServiceConfig struct {
	MaxResults            int
	SimilarityThreshold   float64
	MaxSuggestedQuestions int
}

type caseService struct {
	searcher corpus.Searcher
	cfg      CaseServiceConfig
}

func NewCaseService(searcher corpus.Searcher, cfg CaseServiceConfig) ICaseService {
	return &caseService{
		searcher: searcher,
		cfg:      cfg,
	}
}

func (s *caseService) Search(ctx context.Context, req *dto.SearchCasesRequest) (*dto.SearchCasesResponse, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Query cannot be empty")
	}

	k := s.cfg.MaxResults
	if req.MaxResults > 0 && req.MaxResults < k {
		k = req.MaxResults
	}
	threshold := s.cfg.SimilarityThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	results, err := s.searcher.Search(ctx, query, k, threshold)
	if err != nil {
		return nil, err
	}
	suggested := corpus.SuggestFromResults(results, s.cfg.MaxSuggestedQuestions)

	res := &dto.SearchCasesResponse{
		Query:              query,
		Results:            make([]dto.CaseSearchResult, 0, len(results)),
		SuggestedQuestions: make([]dto.SuggestedQuestionResponse, 0, len(suggested)),
		TotalResults:       len(results),
	}
	for _, r := range results {
		c := r.Case
		questions := c.Questions
		if len(questions) > recommendedQuestionsPerResult {
			questions = questions[:recommendedQuestionsPerResult]
		}
		res.Results = append(res.Results, dto.CaseSearchResult{
			CaseId:               c.CaseID,
			SimilarityScore:      round4(r.Similarity),
			PatientBackground:    c.Background,
			ChiefComplaint:       c.ChiefComplaint,
			MedicalHistory:       c.MedicalHistory,
			OpeningStatement:     c.OpeningStatement,
			RecommendedQuestions: questions,
			RedFlags:             c.RedFlags,
			SuspectedConditions:  c.SuspectedConditions,
		})
	}
	for _, q := range suggested {
		res.SuggestedQuestions = append(res.SuggestedQuestions, dto.SuggestedQuestionResponse{
			Question:        q.Question,
			SimilarityScore: round4(q.Similarity),
			CaseId:          q.CaseID,
		})
	}
	return res, nil
}

func (s *caseService) GetCase(_ context.Context, caseID string) (*corpus.CaseRecord, error) {
	c, ok := s.searcher.GetCase(caseID)
	if !ok {
		return nil, fiber.NewError(fiber.StatusNotFound, "Case not found")
	}
	return c, nil
}

func (s *caseService) Stats(_ context.Context) corpus.Stats {
	return s.searcher.Stats()
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
